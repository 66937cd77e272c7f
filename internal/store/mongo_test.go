package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fogbreaker/engine/internal/domain"
)

func TestAsConflict(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{
			name:     "labelled write conflict",
			err:      writeErr("update session state", mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}),
			conflict: true,
		},
		{
			name:     "commit with transient label",
			err:      mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}},
			conflict: true,
		},
		{
			name:     "write exception with conflict code",
			err:      mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 112, Message: "WriteConflict"}}},
			conflict: true,
		},
		{
			name:     "duplicate key",
			err:      writeErr("append event", mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}),
			conflict: false,
		},
		{
			name:     "plain error",
			err:      errors.New("network down"),
			conflict: false,
		},
		{
			name:     "already a lock error",
			err:      domain.ErrOptimisticLock,
			conflict: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := asConflict("commit transaction", tt.err)
			assert.Equal(t, tt.conflict, errors.Is(got, domain.ErrOptimisticLock))
			assert.Equal(t, tt.conflict, domain.IsRetryable(got))
			if !tt.conflict {
				assert.Same(t, tt.err, got)
			}
		})
	}
}
