package registry

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/surgeo/internal/probtable"
)

// mockSource implements Source for testing.
type mockSource struct {
	mock.Mock
}

func (m *mockSource) Load(ctx context.Context, kind probtable.Kind) (*probtable.Table, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*probtable.Table), args.Error(1)
}
