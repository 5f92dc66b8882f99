package ws

import (
	"time"

	"github.com/bearing-monitor/station/internal/engine"
	"github.com/bearing-monitor/station/internal/session"
)

type MessageType string

const (
	MsgError MessageType = "error"
)

// WSMessage is the envelope for frames the station sends to instruments.
// Instruments send bare JSON objects.
type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// SessionSummary is the /api/sessions view of one instrument.
type SessionSummary struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	DeviceType         string    `json:"deviceType"`
	ConnectedAt        time.Time `json:"connectedAt"`
	Algorithm          string    `json:"algorithm"`
	StopCalculation    bool      `json:"stopCalculation"`
	BackendCalculation bool      `json:"backendCalculation"`
	NeedUpdate         bool      `json:"needUpdate"`
	Summary            string    `json:"summary,omitempty"`
}

func summarize(s *session.Session) SessionSummary {
	return SessionSummary{
		ID:                 s.ID,
		Name:               s.Name,
		DeviceType:         s.DeviceType,
		ConnectedAt:        s.ConnectedAt,
		Algorithm:          s.AlgorithmName,
		StopCalculation:    s.StopCalculation,
		BackendCalculation: s.BackendCalculation,
		NeedUpdate:         s.NeedUpdate,
		Summary:            s.Result.Summary,
	}
}

type HealthPayload struct {
	Status      string        `json:"status"`
	Instruments int           `json:"instruments"`
	Connections int           `json:"connections"`
	Engine      *engine.Stats `json:"engine,omitempty"`
	Process     ProcessHealth `json:"process"`
}

type ProcessHealth struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Goroutines int     `json:"goroutines"`
}
