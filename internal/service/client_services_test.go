package service

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/go-care-keeper/internal/config"
	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/internal/metrics"
	"github.com/MKhiriev/go-care-keeper/internal/mock"
	"github.com/MKhiriev/go-care-keeper/internal/store"
	"github.com/MKhiriev/go-care-keeper/models"
)

func TestResolveUserID(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "nurse-42"}).
		SignedString([]byte("k"))
	require.NoError(t, err)

	tests := []struct {
		name string
		app  config.ClientApp
		want string
	}{
		{name: "explicit", app: config.ClientApp{UserID: "u-1", Token: token}, want: "u-1"},
		{name: "from token", app: config.ClientApp{Token: token}, want: "nurse-42"},
		{name: "broken token", app: config.ClientApp{Token: "garbage"}, want: ""},
		{name: "nothing", app: config.ClientApp{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveUserID(tt.app, logger.Nop()))
		})
	}
}

func TestClientServices_StartAndSave(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteAuthority(ctrl)
	remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(models.MutationResult{Success: true, ServerVersion: 1}, nil).AnyTimes()
	remote.EXPECT().PullSince(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	cfg := &config.ClientConfig{App: config.ClientApp{UserID: "u-1", Namespace: "care"}}
	services, err := NewClientServices(cfg, store.NewMemoryMedium(), remote, metrics.Nop(), logger.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = services.Evaluations.Save(ctx, testEvaluation())
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, services.Start(ctx))
	defer services.Shutdown()

	saved, err := services.Evaluations.Save(ctx, testEvaluation())
	require.NoError(t, err)

	got, err := services.Evaluations.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maria da Silva", got.PatientName)
}

func TestNewClientServices_InvalidNamespace(t *testing.T) {
	cfg := &config.ClientConfig{App: config.ClientApp{Namespace: "a:b"}}
	_, err := NewClientServices(cfg, store.NewMemoryMedium(), nil, metrics.Nop(), logger.Nop())
	assert.ErrorIs(t, err, ErrInvalidNamespace)
}

func TestNewClientServices_EmptyNamespace(t *testing.T) {
	cfg := &config.ClientConfig{App: config.ClientApp{Namespace: ""}}
	_, err := NewClientServices(cfg, store.NewMemoryMedium(), nil, metrics.Nop(), logger.Nop())
	assert.ErrorIs(t, err, ErrInvalidNamespace)
}

func TestUserNamespace(t *testing.T) {
	assert.Equal(t, UserNamespace("care", "u-1"), UserNamespace("care", "u-1"))
	assert.NotEqual(t, UserNamespace("care", "u-1"), UserNamespace("care", "u-2"))
	assert.Equal(t, UserNamespace("care", ""), UserNamespace("care", "anonymous"))
	assert.NoError(t, validateNamespace(UserNamespace("care", "a:b")))
}

// ── смена пользователя на одном устройстве ──

func TestClientServices_UserSwitchKeepsQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	// remote не должен вызываться: всё происходит offline
	remote := mock.NewMockRemoteAuthority(ctrl)
	medium := store.NewMemoryMedium()
	ctx := context.Background()

	newServices := func(userID string) *ClientServices {
		cfg := &config.ClientConfig{App: config.ClientApp{UserID: userID, Namespace: "care"}}
		services, err := NewClientServices(cfg, medium, remote, metrics.Nop(), logger.Nop())
		require.NoError(t, err)
		require.NoError(t, services.Start(ctx))
		services.SyncEngine.SetOnline(ctx, false)
		return services
	}

	first := newServices("user-1")
	_, err := first.Evaluations.Save(ctx, testEvaluation())
	require.NoError(t, err)
	require.Equal(t, 1, first.SyncEngine.State().PendingCount)
	first.Shutdown()

	second := newServices("user-2")
	assert.Zero(t, second.SyncEngine.State().PendingCount, "чужие записи не видны")
	second.Shutdown()

	again := newServices("user-1")
	defer again.Shutdown()
	assert.Equal(t, 1, again.SyncEngine.State().PendingCount, "очередь первого пользователя сохранилась")

	list, err := again.Evaluations.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Maria da Silva", list[0].PatientName)
}
