package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/h7link/pkg/l0/bus"
)

func TestTransfer(t *testing.T) {
	srv := httptest.NewServer(Handler(8, func(in []byte) []byte {
		out := append([]byte(nil), in...)
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return out
	}))
	defer srv.Close()

	tr, err := Dial("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	defer tr.Close()

	rx := make([]byte, 8)
	require.NoError(t, tr.Transfer([]byte{1, 2, 3, 4, 5, 6, 7, 8}, rx))
	require.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, rx)

	err = tr.Transfer(make([]byte, 8), make([]byte, 7))
	require.Equal(t, &bus.SizeError{Expected: 8, Actual: 7}, err)

	// replies are padded to the frame size
	require.Equal(t, &bus.SizeError{Expected: 4, Actual: 8}, tr.Transfer(make([]byte, 4), make([]byte, 4)))
}
