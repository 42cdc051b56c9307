package ws

import "time"

type ConnInfo struct {
	ConnID      string
	UserID      string
	Username    string
	Guest       bool
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) identity() map[string]any {
	return map[string]any{
		"user_id":   i.UserID,
		"username":  i.Username,
		"guest":     i.Guest,
		"device_id": i.DeviceID,
		"ip":        i.IP,
	}
}
