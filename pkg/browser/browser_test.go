package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRodBrowser_CloseWithoutConnectIsNoOp(t *testing.T) {
	b := NewRodBrowser("", nil)
	assert.NoError(t, b.Close())
}

func TestNewRodBrowser_StoresConfig(t *testing.T) {
	b := NewRodBrowser("ws://127.0.0.1:9222", []string{"--headless", "--no-sandbox"})
	assert.Equal(t, "ws://127.0.0.1:9222", b.remoteAddr)
	assert.Equal(t, []string{"--headless", "--no-sandbox"}, b.chromeArgs)
}
