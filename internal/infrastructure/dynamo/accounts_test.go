package dynamo

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAccount builds an account the way registration does: verification code
// set, everything reset-related still nil.
func newAccount() *domain.Account {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	code := "123456"
	expiresAt := now.Add(15 * time.Minute)
	return &domain.Account{
		Email:                     "ann@x.com",
		AccountID:                 "01HZXCV0000000000000000000",
		FirstName:                 "Ann",
		LastName:                  "Lee",
		DateOfBirth:               time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		PasswordHash:              "$2a$10$hash",
		VerificationCode:          &code,
		VerificationCodeExpiresAt: &expiresAt,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
}

func TestAccountMarshal_NilFieldsOmitted(t *testing.T) {
	item, err := attributevalue.MarshalMap(newAccount())
	require.NoError(t, err)

	// Nil pointers must not surface as NULL attributes. reset_fingerprint is
	// the hash key of reset_fingerprint-index: a NULL there makes DynamoDB
	// reject the whole PutItem.
	for _, attr := range []string{
		"reset_fingerprint",
		"reset_expires_at",
		"last_reset_request_at",
		"last_verification_request_at",
		"verified_at",
	} {
		_, present := item[attr]
		assert.False(t, present, "attribute %s should be absent for a fresh account", attr)
	}
	for name, av := range item {
		_, isNull := av.(*types.AttributeValueMemberNULL)
		assert.False(t, isNull, "attribute %s marshaled as NULL", name)
	}

	// Both GSI hash keys must be S-typed.
	assert.IsType(t, &types.AttributeValueMemberS{}, item["email"])
	assert.IsType(t, &types.AttributeValueMemberS{}, item["account_id"])
}

func TestAccountMarshal_SecretTimestampsAreNumeric(t *testing.T) {
	a := newAccount()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	fp := "fingerprint"
	a.LastVerificationRequestAt = &at
	a.ResetFingerprint = &fp
	a.ResetExpiresAt = &at
	a.LastResetRequestAt = &at

	item, err := attributevalue.MarshalMap(a)
	require.NoError(t, err)

	// The cooldown conditions compare these attributes with <=, which only
	// works when they are stored as numbers (Unix seconds).
	for _, attr := range []string{
		"verification_code_expires_at",
		"last_verification_request_at",
		"reset_expires_at",
		"last_reset_request_at",
	} {
		n, ok := item[attr].(*types.AttributeValueMemberN)
		require.True(t, ok, "attribute %s should be N-typed", attr)
		if attr == "verification_code_expires_at" {
			assert.Equal(t, "1717244100", n.Value) // 12:15:00 UTC
		} else {
			assert.Equal(t, "1717243200", n.Value) // 12:00:00 UTC
		}
	}
	assert.IsType(t, &types.AttributeValueMemberS{}, item["reset_fingerprint"])
}

func TestAccountMarshal_RoundTrip(t *testing.T) {
	a := newAccount()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	a.LastVerificationRequestAt = &at

	item, err := attributevalue.MarshalMap(a)
	require.NoError(t, err)

	var got domain.Account
	require.NoError(t, attributevalue.UnmarshalMap(item, &got))

	assert.Equal(t, a.Email, got.Email)
	assert.Equal(t, a.AccountID, got.AccountID)
	assert.Equal(t, a.PasswordHash, got.PasswordHash)
	require.NotNil(t, got.VerificationCode)
	assert.Equal(t, *a.VerificationCode, *got.VerificationCode)
	require.NotNil(t, got.VerificationCodeExpiresAt)
	assert.True(t, got.VerificationCodeExpiresAt.Equal(*a.VerificationCodeExpiresAt))
	require.NotNil(t, got.LastVerificationRequestAt)
	assert.True(t, got.LastVerificationRequestAt.Equal(at))
	assert.Nil(t, got.ResetFingerprint)
	assert.Nil(t, got.ResetExpiresAt)
	assert.Nil(t, got.LastResetRequestAt)
	assert.Nil(t, got.VerifiedAt)
}
