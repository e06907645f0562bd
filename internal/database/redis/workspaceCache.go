package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gabrie-lhilarion/spacemania/internal/database"
	"github.com/gabrie-lhilarion/spacemania/internal/entity"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// WorkspaceCache is a read-through cache in front of a workspace catalog.
// Redis failures degrade to the underlying repository.
type WorkspaceCache struct {
	next   database.WorkspaceRepository
	client *redis.Client
	ttl    time.Duration
}

func NewWorkspaceCache(next database.WorkspaceRepository, client *redis.Client, ttl time.Duration) *WorkspaceCache {
	return &WorkspaceCache{
		next:   next,
		client: client,
		ttl:    ttl,
	}
}

func workspaceKey(id int64) string {
	return fmt.Sprintf("workspace:%d", id)
}

func (c *WorkspaceCache) Create(ctx context.Context, workspace *entity.Workspace) error {
	return c.next.Create(ctx, workspace)
}

func (c *WorkspaceCache) GetByID(ctx context.Context, id int64) (*entity.Workspace, error) {
	data, err := c.client.Get(ctx, workspaceKey(id)).Bytes()
	if err == nil {
		var workspace entity.Workspace
		if err := json.Unmarshal(data, &workspace); err == nil {
			return &workspace, nil
		}
		logrus.WithField("workspace_id", id).Warn("Dropping undecodable cached workspace")
	} else if !errors.Is(err, redis.Nil) {
		logrus.WithError(err).WithField("workspace_id", id).Warn("Workspace cache read failed")
	}

	workspace, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.store(ctx, workspace)
	return workspace, nil
}

func (c *WorkspaceCache) List(ctx context.Context, filter *entity.WorkspaceFilter) ([]*entity.Workspace, error) {
	return c.next.List(ctx, filter)
}

func (c *WorkspaceCache) Deactivate(ctx context.Context, id int64) error {
	if err := c.next.Deactivate(ctx, id); err != nil {
		return err
	}

	if err := c.client.Del(ctx, workspaceKey(id)).Err(); err != nil {
		logrus.WithError(err).WithField("workspace_id", id).Error("Failed to invalidate cached workspace")
	}
	return nil
}

func (c *WorkspaceCache) store(ctx context.Context, workspace *entity.Workspace) {
	data, err := json.Marshal(workspace)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, workspaceKey(workspace.ID), data, c.ttl).Err(); err != nil {
		logrus.WithError(err).WithField("workspace_id", workspace.ID).Warn("Workspace cache write failed")
	}
}

var _ database.WorkspaceRepository = (*WorkspaceCache)(nil)
