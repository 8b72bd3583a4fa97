package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/balance-dashboard/internal/logging"
)

func TestRender(t *testing.T) {
	msg, err := Render(KindVerificationCode, "a@b.com", "", map[string]string{"code": "123456", "ttl": "10"})
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", msg.Name)
	assert.Contains(t, msg.Text, "123456")
	assert.Contains(t, msg.HTML, "<strong>123456</strong>")
}

func TestRender_EscapesHTML(t *testing.T) {
	msg, err := Render(KindSupportResponse, "a@b.com", "Ann", map[string]string{"message": "<script>x</script>"})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.Text, "<script>x</script>")
}

func TestRender_UnknownKind(t *testing.T) {
	_, err := Render("fax", "a@b.com", "", nil)
	assert.Error(t, err)
}

func TestSendGrid_Send(t *testing.T) {
	sg := NewSendGrid("key", "no-reply@x.com", "BALANCE")
	var got map[string]any
	sg.api = func(r *sendgridRequest) (int, string, error) {
		assert.Equal(t, "key", r.key)
		require.NoError(t, json.Unmarshal(r.body, &got))
		return 202, "", nil
	}
	require.NoError(t, sg.Send(context.Background(), Message{To: "a@b.com", Subject: "Hi", Text: "t"}))
	p := got["personalizations"].([]any)[0].(map[string]any)
	assert.Equal(t, "[BALANCE] Hi", p["subject"])
}

func TestSendGrid_SendErrors(t *testing.T) {
	sg := NewSendGrid("key", "no-reply@x.com", "BALANCE")
	sg.api = func(*sendgridRequest) (int, string, error) { return 400, "bad", nil }
	assert.Error(t, sg.Send(context.Background(), Message{To: "a@b.com"}))

	sg.api = func(*sendgridRequest) (int, string, error) { return 0, "", errors.New("dial") }
	assert.Error(t, sg.Send(context.Background(), Message{To: "a@b.com"}))
}

func TestNewFallsBackToConsole(t *testing.T) {
	_, ok := New("", "f@x.com", "BALANCE", logging.Nop()).(*Console)
	assert.True(t, ok)
	_, ok = New("k", "f@x.com", "BALANCE", logging.Nop()).(*SendGrid)
	assert.True(t, ok)
}
