package redis

import (
	"context"

	"github.com/cellarium-cloud/cas-api/internal/db"
)

// XAdd appends an entry to a stream with an auto-generated id.
func (s *Store) XAdd(ctx context.Context, key string, fields map[string]string) error {
	cmd := s.b().Xadd().Key(key).Id("*").FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	if err := s.do(ctx, cmd.Build()).Error(); err != nil {
		return &db.Error{Op: db.OpXAdd, Err: err}
	}
	return nil
}

// XLen returns the number of entries in a stream.
func (s *Store) XLen(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Xlen().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpXLen, Err: err}
	}
	return n, nil
}
