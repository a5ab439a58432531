package export

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"resultexport/internal/delivery"
)

// LoginExporter writes the login credentials of everyone who attempted the
// given deliveries, one login per row, de-duplicated in first-seen order.
type LoginExporter struct {
	store     ResultStore
	users     UserDirectory
	artifacts ArtifactStore
	log       *zap.Logger

	now      func() time.Time
	hostname func() (string, error)
}

func NewLoginExporter(store ResultStore, users UserDirectory, artifacts ArtifactStore, log *zap.Logger) *LoginExporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoginExporter{
		store:     store,
		users:     users,
		artifacts: artifacts,
		log:       log,
		now:       time.Now,
		hostname:  os.Hostname,
	}
}

// Export streams the logins into a CSV artifact. A user without any resolvable
// login credential fails the run.
func (e *LoginExporter) Export(ctx context.Context, deliveries []delivery.Delivery, prefix string, withHeader, withTimestamp bool) *Report {
	host, err := e.hostname()
	if err != nil {
		host = ""
	}
	path := artifactPath(e.now(), host, prefix, withTimestamp, "")

	renderer, err := NewCSVRenderer(e.artifacts, path, !withTimestamp)
	if err != nil {
		return NewError("preparing login artifact: %v", err)
	}
	return e.runTo(ctx, deliveries, renderer, withHeader)
}

// ExportTo streams the logins through a caller-supplied renderer.
func (e *LoginExporter) ExportTo(ctx context.Context, deliveries []delivery.Delivery, r Renderer, withHeader bool) *Report {
	return e.runTo(ctx, deliveries, r, withHeader)
}

func (e *LoginExporter) runTo(ctx context.Context, deliveries []delivery.Delivery, renderer Renderer, withHeader bool) *Report {
	if withHeader {
		if err := renderer.AddRow([]string{"login"}); err != nil {
			return NewError("writing login header: %v", err)
		}
	}

	seen := make(map[string]struct{})
	rows := 0
	for _, d := range deliveries {
		execIDs, err := e.store.ResultsForDelivery(ctx, d.ID)
		if err != nil {
			return NewError("listing results for delivery %s: %v", d.ID, err)
		}

		for _, execID := range execIDs {
			if err := ctx.Err(); err != nil {
				return NewError("login export cancelled: %v", err)
			}

			exec, err := e.store.ExecutionByID(ctx, execID)
			if err != nil {
				return NewError("loading execution %s: %v", execID, err)
			}
			user, err := e.users.UserByID(ctx, exec.UserID)
			if err != nil {
				return NewError("loading user %s: %v", exec.UserID, err)
			}

			login := user.DisplayLogin()
			if login == "" {
				return NewError("user %s of execution %s has no login credential", exec.UserID, execID)
			}
			if _, ok := seen[login]; ok {
				continue
			}
			seen[login] = struct{}{}

			if err := renderer.AddRow([]string{login}); err != nil {
				return NewError("writing login row: %v", err)
			}
			rows++
		}
	}

	artifact, err := renderer.Render()
	if err != nil {
		return NewError("rendering login artifact: %v", err)
	}

	rep := NewSuccess(fmt.Sprintf("%d login(s) exported to %s", rows, artifact))
	rep.Rows = rows
	return rep
}
