package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weiawesome/sync-party/internal/domain"
)

type sample struct {
	User  string `validate:"required,min=3,max=50,username"`
	Link  string `validate:"omitempty,httpurl"`
	Embed string `validate:"omitempty,httpsurl"`
	Key   string `validate:"omitempty,blobkey"`
}

func TestStruct_CustomTags(t *testing.T) {
	tests := []struct {
		name    string
		in      sample
		wantErr bool
	}{
		{"valid", sample{User: "alice_01", Link: "http://a.b/c", Embed: "https://a.b", Key: "parties/p/x.mp4"}, false},
		{"short username", sample{User: "al"}, true},
		{"username with space", sample{User: "al ice"}, true},
		{"link without scheme", sample{User: "alice", Link: "a.b/c"}, true},
		{"link ftp", sample{User: "alice", Link: "ftp://a.b/c"}, true},
		{"embed over http", sample{User: "alice", Embed: "http://a.b"}, true},
		{"key traversal", sample{User: "alice", Key: "parties/../etc"}, true},
		{"absolute key", sample{User: "alice", Key: "/etc/passwd"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsBlobKey(t *testing.T) {
	assert.True(t, IsBlobKey("a/b/c.png"))
	assert.False(t, IsBlobKey(""))
	assert.False(t, IsBlobKey("a//b"))
	assert.False(t, IsBlobKey("./a"))
	assert.False(t, IsBlobKey("s3://bucket/a"))
}
