package view

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bearing-monitor/station/internal/bridge"
)

// Run consumes updates without a terminal and logs what a user would see.
// The first session to connect is selected automatically so its results
// are computed and reported. Run returns nil when ctx ends or the bridge
// closes.
func Run(ctx context.Context, conn *bridge.PresentationSide, log *slog.Logger) error {
	log = log.With("component", "headless")
	var st State
	for {
		u, err := conn.Recv(ctx)
		if err != nil {
			if errors.Is(err, bridge.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !st.Apply(u) {
			continue
		}

		switch u := u.(type) {
		case bridge.SessionAdded:
			log.Info("instrument connected", "session_id", u.ID, "name", u.Name, "device_type", u.DeviceType)
			if st.Selected == "" {
				st.Select(u.ID)
				if err := conn.Send(bridge.SelectSession{ID: u.ID}); err != nil {
					return nil
				}
			}
		case bridge.SessionRemoved:
			log.Info("instrument disconnected", "session_id", u.ID)
			if st.Selected == "" && len(st.Sessions) > 0 {
				next := st.Sessions[0].ID
				st.Select(next)
				if err := conn.Send(bridge.SelectSession{ID: next}); err != nil {
					return nil
				}
			}
		case bridge.ResultUpdated:
			log.Info("result", "session_id", u.ID, "summary", u.Result.Summary, "artifacts", u.Result.Names())
		case bridge.LogUpdated:
			if n := len(u.Lines); n > 0 {
				log.Debug("session log", "session_id", u.ID, "line", u.Lines[n-1])
			}
		default:
			log.Debug("update", "kind", u.Kind())
		}
	}
}
