package service

import (
	"context"
	"fmt"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/internal/telemetry"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/usage"
)

// UsageResult is returned by usage registry mutations.
type UsageResult struct {
	Usage     *usage.Record     `json:"usage,omitempty"`
	Removed   int               `json:"removed"`
	Message   string            `json:"message"`
	Success   bool              `json:"success"`
	ErrorKind storage.ErrorKind `json:"errorKind,omitempty"`
}

func usageFailed(ctx context.Context, op string, err error) *UsageResult {
	res := fail(ctx, op, err)
	return &UsageResult{Message: res.Message, ErrorKind: res.ErrorKind}
}

// CheckFileUsage reports whether the file at p is in use and may be deleted.
func (s *Service) CheckFileUsage(ctx context.Context, p string) (*usage.CheckResult, error) {
	c, err := clean(p)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartUsageSpan(ctx, telemetry.SpanUsageCheck, c)
	defer span.End()

	res, err := s.usage.Check(ctx, c)
	telemetry.RecordError(ctx, err)
	return res, err
}

// FileUsage lists the usage records of the file at p.
func (s *Service) FileUsage(ctx context.Context, p string) ([]usage.Record, error) {
	c, err := clean(p)
	if err != nil {
		return nil, err
	}
	return s.usage.List(ctx, c)
}

// RegisterFileUsage records that an entity references a file. The file must
// exist; the check and the registration run under the path lock so a
// concurrent delete either sees the usage or removes the file first.
func (s *Service) RegisterFileUsage(ctx context.Context, in usage.RegisterInput) *UsageResult {
	const op = "registerFileUsage"
	ctx = logger.OperationFromContext(ctx, op)

	p, err := clean(in.FilePath)
	if err != nil {
		return usageFailed(ctx, op, err)
	}
	in.FilePath = p

	ctx, span := telemetry.StartUsageSpan(ctx, telemetry.SpanUsageRegister, p,
		telemetry.UsageReference(in.ReferenceTable, in.ReferenceID)...)
	defer span.End()

	unlock, err := s.locks.Lock(ctx, p)
	if err != nil {
		return usageFailed(ctx, op, storage.NewCanceledError(p, err))
	}
	defer unlock()

	entry, err := s.router.Stat(ctx, p)
	if err != nil {
		return usageFailed(ctx, op, err)
	}
	if entry.IsDir {
		return usageFailed(ctx, op, storage.NewInvalidInputError(p, "usages can only be registered on files"))
	}

	rec, err := s.usage.Register(ctx, in)
	if err != nil {
		return usageFailed(ctx, op, err)
	}
	return &UsageResult{Usage: rec, Message: "File usage registered successfully", Success: true}
}

// DeregisterFileUsage removes the usages an entity holds on a file. Removing
// nothing is not an error.
func (s *Service) DeregisterFileUsage(ctx context.Context, in usage.DeregisterInput) *UsageResult {
	const op = "deregisterFileUsage"
	ctx = logger.OperationFromContext(ctx, op)
	ctx, span := telemetry.StartUsageSpan(ctx, telemetry.SpanUsageDeregister, in.FilePath,
		telemetry.UsageReference(in.ReferenceTable, in.ReferenceID)...)
	defer span.End()

	n, err := s.usage.Deregister(ctx, in)
	if err != nil {
		return usageFailed(ctx, op, err)
	}
	return &UsageResult{Removed: n, Message: removedMessage(n), Success: true}
}

// DeregisterReference removes every usage an entity holds, for entity
// deletion flows.
func (s *Service) DeregisterReference(ctx context.Context, referenceTable, referenceID string) *UsageResult {
	const op = "deregisterReference"
	ctx = logger.OperationFromContext(ctx, op)
	ctx, span := telemetry.StartUsageSpan(ctx, telemetry.SpanUsageDeregister, "",
		telemetry.UsageReference(referenceTable, referenceID)...)
	defer span.End()

	n, err := s.usage.DeregisterReference(ctx, referenceTable, referenceID)
	if err != nil {
		return usageFailed(ctx, op, err)
	}
	return &UsageResult{Removed: n, Message: removedMessage(n), Success: true}
}

func removedMessage(n int) string {
	if n == 1 {
		return "Removed 1 usage record"
	}
	return fmt.Sprintf("Removed %d usage records", n)
}
