package monitor

import "time"

type Status struct {
	PostgreSQL  bool      `json:"postgresql"`
	Redis       bool      `json:"redis"`
	Connections int       `json:"connections"`
	LastCheck   time.Time `json:"last_check"`
}
