package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/xhashpass/authworker/internal/model"
)

func TestClaimsContext(t *testing.T) {
	t.Parallel()

	if got := ClaimsFromContext(context.Background()); got != nil {
		t.Errorf("empty context should return nil, got %+v", got)
	}

	claims := &model.TokenClaims{UserID: uuid.New()}
	ctx := ContextWithClaims(context.Background(), claims)
	if got := ClaimsFromContext(ctx); got != claims {
		t.Errorf("ClaimsFromContext = %+v, want %+v", got, claims)
	}
}
