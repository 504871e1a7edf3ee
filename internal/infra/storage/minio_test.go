package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "20261017_123456/walls/brick.png", ObjectKey("", "20261017_123456/walls/brick.png"))
	assert.Equal(t, "backups/20261017_123456/a.png", ObjectKey("/backups/", "20261017_123456/a.png"))
	assert.Equal(t, "backups/a.png", ObjectKey("backups", "/a.png"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("/x/wall.PNG"))
	assert.Equal(t, "image/jpeg", ContentType("/x/wall.jpeg"))
	assert.Equal(t, "application/octet-stream", ContentType("/x/wall"))
}
