package ports

import (
	"context"

	"github.com/kirillkom/neurovision/internal/core/domain"
)

// DiagnosticSession is the inbound contract presentation layers drive.
// Submit and Reset never fail: outcomes are represented as session state.
type DiagnosticSession interface {
	SelectFile(ctx context.Context, image domain.SelectedImage) error
	Submit(ctx context.Context) bool
	Reset(ctx context.Context)
	Snapshot() domain.Snapshot
	WaitSettled(ctx context.Context) error
}

// SnapshotSubscriber lets a renderer be told about every transition.
// The returned func removes the listener.
type SnapshotSubscriber interface {
	Subscribe(listener func(domain.Snapshot)) (unsubscribe func())
}
