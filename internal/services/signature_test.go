package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/services"
)

func TestPayoutSignature(t *testing.T) {
	user := &models.User{DeviceID: "dev-1", PubKey: "pub-1"}

	sig := services.SignPayoutRequest("pepper", user, "+250780000001", 5000, "nonce-1")
	require.NotEmpty(t, sig)

	t.Run("round trip verifies", func(t *testing.T) {
		err := services.VerifyPayoutSignature("pepper", user, "+250780000001", 5000, "nonce-1", sig)
		assert.NoError(t, err)
	})

	t.Run("any field change breaks verification", func(t *testing.T) {
		cases := []struct {
			name   string
			verify func() error
		}{
			{"different pepper", func() error {
				return services.VerifyPayoutSignature("other", user, "+250780000001", 5000, "nonce-1", sig)
			}},
			{"different number", func() error {
				return services.VerifyPayoutSignature("pepper", user, "+250780000002", 5000, "nonce-1", sig)
			}},
			{"different amount", func() error {
				return services.VerifyPayoutSignature("pepper", user, "+250780000001", 5001, "nonce-1", sig)
			}},
			{"different nonce", func() error {
				return services.VerifyPayoutSignature("pepper", user, "+250780000001", 5000, "nonce-2", sig)
			}},
			{"different device key", func() error {
				other := &models.User{DeviceID: "dev-1", PubKey: "pub-2"}
				return services.VerifyPayoutSignature("pepper", other, "+250780000001", 5000, "nonce-1", sig)
			}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				assert.ErrorIs(t, tc.verify(), models.ErrInvalidSignature)
			})
		}
	})
}

func TestHashMobileNumber(t *testing.T) {
	h1 := services.HashMobileNumber("pepper", "+250780000001")
	h2 := services.HashMobileNumber("pepper", "+250780000001")
	h3 := services.HashMobileNumber("pepper", "+250780000002")
	h4 := services.HashMobileNumber("other", "+250780000001")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.NotEqual(t, h1, h4)
	assert.Len(t, h1, 64) // hex SHA-256
}
