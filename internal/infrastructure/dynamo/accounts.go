package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-api/internal/domain"
)

// AccountRepo provides typed DynamoDB operations for the accounts table.
// The table is keyed by email; account_id and reset_fingerprint are reachable
// through GSIs. All cooldown and attempt-cap gates are expressed as condition
// expressions so concurrent requests cannot both pass a check-then-set.
type AccountRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAccountRepo(client *dynamodb.Client, tableName string) *AccountRepo {
	return &AccountRepo{client: client, tableName: tableName}
}

// Put creates a new account. Fails with domain.ErrConflict when an account
// with the same email already exists.
func (r *AccountRepo) Put(ctx context.Context, a *domain.Account) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(email)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	return err
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account %q: %w", email, domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByEmailAndCode returns the account only when its stored verification code
// matches. Expiry is not checked here; the caller distinguishes expired from
// wrong codes.
func (r *AccountRepo) GetByEmailAndCode(ctx context.Context, email, code string) (*domain.Account, error) {
	a, err := r.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if a.VerificationCode == nil || *a.VerificationCode != code {
		return nil, fmt.Errorf("verification code mismatch: %w", domain.ErrNotFound)
	}
	return a, nil
}

func (r *AccountRepo) GetByID(ctx context.Context, accountID string) (*domain.Account, error) {
	return r.queryGSI(ctx, "account_id-index", "account_id", accountID)
}

func (r *AccountRepo) GetByResetFingerprint(ctx context.Context, fingerprint string) (*domain.Account, error) {
	return r.queryGSI(ctx, "reset_fingerprint-index", "reset_fingerprint", fingerprint)
}

// Update applies a partial field update and stamps updated_at.
func (r *AccountRepo) Update(ctx context.Context, email string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("email", email),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// MarkVerified flips the account to verified and clears the verification code
// and its expiry in the same write.
func (r *AccountRepo) MarkVerified(ctx context.Context, email string, verifiedAt time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
		UpdateExpression: aws.String(
			"SET is_verified = :t, verified_at = :at, updated_at = :at " +
				"REMOVE verification_code, verification_code_expires_at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":  &types.AttributeValueMemberBOOL{Value: true},
			":at": timeAttr(verifiedAt),
		},
	})
	return err
}

// RotateVerificationCode replaces the verification code and stamps the request
// time, guarded by the resend cooldown: the write succeeds only when no prior
// request exists or the last one is at or before cutoff. A lost race returns
// domain.ErrRateLimited.
func (r *AccountRepo) RotateVerificationCode(ctx context.Context, email, code string, expiresAt, requestedAt, cutoff time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
		UpdateExpression: aws.String(
			"SET verification_code = :code, verification_code_expires_at = :exp, " +
				"last_verification_request_at = :req, updated_at = :upd"),
		ConditionExpression: aws.String(
			"attribute_not_exists(last_verification_request_at) OR last_verification_request_at <= :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":code":   &types.AttributeValueMemberS{Value: code},
			":exp":    unixAttr(expiresAt),
			":req":    unixAttr(requestedAt),
			":cutoff": unixAttr(cutoff),
			":upd":    timeAttr(requestedAt),
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("resend cooldown active: %w", domain.ErrRateLimited)
	}
	return err
}

// IssueResetToken stores a new reset-token fingerprint and increments the
// attempt counter, guarded by both the request cooldown and the attempt cap.
// A failed condition returns domain.ErrRateLimited; the caller re-reads the
// record to tell a cooldown from an exhausted cap.
func (r *AccountRepo) IssueResetToken(ctx context.Context, email, fingerprint string, expiresAt, requestedAt, cutoff time.Time, maxAttempts int) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
		UpdateExpression: aws.String(
			"SET reset_fingerprint = :fp, reset_expires_at = :exp, " +
				"last_reset_request_at = :req, updated_at = :upd " +
				"ADD reset_attempts :one"),
		ConditionExpression: aws.String(
			"(attribute_not_exists(last_reset_request_at) OR last_reset_request_at <= :cutoff) AND " +
				"(attribute_not_exists(reset_attempts) OR reset_attempts < :max)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":fp":     &types.AttributeValueMemberS{Value: fingerprint},
			":exp":    unixAttr(expiresAt),
			":req":    unixAttr(requestedAt),
			":cutoff": unixAttr(cutoff),
			":max":    &types.AttributeValueMemberN{Value: strconv.Itoa(maxAttempts)},
			":one":    &types.AttributeValueMemberN{Value: "1"},
			":upd":    timeAttr(requestedAt),
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("reset request gate: %w", domain.ErrRateLimited)
	}
	return err
}

// ClearResetToken removes an outstanding reset token and its expiry. Used to
// roll back an issued token when notification delivery fails; the attempt
// counter and request timestamp stay as they are.
func (r *AccountRepo) ClearResetToken(ctx context.Context, email string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("email", email),
		UpdateExpression: aws.String("SET updated_at = :upd REMOVE reset_fingerprint, reset_expires_at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":upd": timeAttr(time.Now().UTC()),
		},
	})
	return err
}

// CompleteReset stores the new password hash, clears the reset token state and
// zeroes the attempt counter in one write.
func (r *AccountRepo) CompleteReset(ctx context.Context, email, passwordHash string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
		UpdateExpression: aws.String(
			"SET password_hash = :hash, reset_attempts = :zero, updated_at = :upd " +
				"REMOVE reset_fingerprint, reset_expires_at, last_reset_request_at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":hash": &types.AttributeValueMemberS{Value: passwordHash},
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":upd":  timeAttr(time.Now().UTC()),
		},
	})
	return err
}

// SetPassword replaces the stored password hash (authenticated change).
func (r *AccountRepo) SetPassword(ctx context.Context, email, passwordHash string) error {
	return r.Update(ctx, email, map[string]interface{}{"password_hash": passwordHash})
}

func (r *AccountRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.Account, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("account lookup via %s: %w", index, domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func unixAttr(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}

func timeAttr(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: t.UTC().Format(time.RFC3339Nano)}
}
