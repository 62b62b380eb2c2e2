package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/agentcore/pkg/model"
)

func TestSSHNodeRepositoryCountByUserIDEnforcesQuota(t *testing.T) {
	pool := newTestPool(t)
	nodes := NewSSHNodeRepository(pool)
	userID := uuid.NewString()

	for i := 0; i < model.MaxSSHNodesPerUser; i++ {
		n := &model.SSHNode{
			ID: uuid.NewString(), UserID: userID, Name: "node", SSHEnabled: true,
			SSHHost: "10.0.0.1", SSHPort: model.DefaultSSHPort, SSHUsername: "root",
			SSHAuthType: model.SSHAuthPassword, SSHPassword: "secret",
		}
		require.NoError(t, nodes.Save(context.Background(), n))
	}

	count, err := nodes.CountByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, model.MaxSSHNodesPerUser, count)
}

func TestSSHNodeRepositoryFindByIDRoundTripsSecrets(t *testing.T) {
	pool := newTestPool(t)
	nodes := NewSSHNodeRepository(pool)

	n := &model.SSHNode{
		ID: uuid.NewString(), UserID: uuid.NewString(), Name: "db-primary", SSHEnabled: true,
		SSHHost: "10.0.0.5", SSHPort: 22, SSHUsername: "ops",
		SSHAuthType: model.SSHAuthPrivateKey, SSHPrivateKey: "-----BEGIN-----", SSHRequireApproval: true,
	}
	require.NoError(t, nodes.Save(context.Background(), n))

	found, err := nodes.FindByID(context.Background(), n.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, n.SSHPrivateKey, found.SSHPrivateKey)
	assert.True(t, found.SSHRequireApproval)
	assert.Empty(t, found.SSHPassword)
}
