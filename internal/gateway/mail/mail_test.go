package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"

	"github.com/FACorreiaa/go-identity-service/internal/types"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error {
	args := m.Called(ctx, messages)
	return args.Error(0)
}

func (m *MockSender) Close() error {
	return m.Called().Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLinks(t *testing.T) {
	links := Links{BaseURL: "https://id.example.com/"}

	assert.Equal(t, "https://id.example.com/verify-email?token=abc.def", links.VerifyEmail("abc.def"))
	assert.Equal(t, "https://id.example.com/reset-password/abc.def", links.ResetPassword("abc.def"))

	_, err := links.For(types.PurposeSession, "abc")
	assert.Error(t, err)
}

func TestSMTPNotifier_Deliver(t *testing.T) {
	tests := []struct {
		name     string
		purpose  types.TokenPurpose
		subject  string
		wantLink string
	}{
		{"verification", types.PurposeEmailVerify, "Email Verification", "http://localhost:8000/verify-email?token=tok123"},
		{"reset", types.PurposePasswordReset, "Password Reset", "http://localhost:8000/reset-password/tok123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := new(MockSender)
			var sent *gomail.Msg
			sender.On("DialAndSendWithContext", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) {
					msgs := args.Get(1).([]*gomail.Msg)
					require.Len(t, msgs, 1)
					sent = msgs[0]
				}).
				Return(nil).Once()

			n := newSMTPNotifier(sender, "noreply@example.com", Links{BaseURL: "http://localhost:8000"}, discardLogger())
			err := n.Deliver(context.Background(), "jane@example.com", "tok123", tt.purpose)
			require.NoError(t, err)
			sender.AssertExpectations(t)

			require.NotNil(t, sent)
			assert.Equal(t, []string{tt.subject}, sent.GetGenHeader(gomail.HeaderSubject))
			rcpts, err := sent.GetRecipients()
			require.NoError(t, err)
			assert.Equal(t, []string{"jane@example.com"}, rcpts)

			var buf bytes.Buffer
			_, err = sent.WriteTo(&buf)
			require.NoError(t, err)
			assert.Contains(t, buf.String(), tt.wantLink)
		})
	}
}

func TestSMTPNotifier_DeliverFailure(t *testing.T) {
	sender := new(MockSender)
	sender.On("DialAndSendWithContext", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	n := newSMTPNotifier(sender, "noreply@example.com", Links{BaseURL: "http://localhost:8000"}, discardLogger())
	err := n.Deliver(context.Background(), "jane@example.com", "tok", types.PurposeEmailVerify)

	assert.ErrorIs(t, err, types.ErrUpstream)
}

func TestSMTPNotifier_BadRecipient(t *testing.T) {
	sender := new(MockSender)
	n := newSMTPNotifier(sender, "noreply@example.com", Links{BaseURL: "http://localhost:8000"}, discardLogger())

	err := n.Deliver(context.Background(), "not an address", "tok", types.PurposeEmailVerify)

	assert.Error(t, err)
	sender.AssertNotCalled(t, "DialAndSendWithContext", mock.Anything, mock.Anything)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)), Links{BaseURL: "http://localhost:8000"})

	require.NoError(t, n.Deliver(context.Background(), "jane@example.com", "tok", types.PurposePasswordReset))
	assert.Contains(t, buf.String(), "http://localhost:8000/reset-password/tok")

	assert.Error(t, n.Deliver(context.Background(), "jane@example.com", "tok", types.PurposeSession))
}
