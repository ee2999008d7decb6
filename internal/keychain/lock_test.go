package keychain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }

	if err := l.Acquire(ctx, "gophnote", "host", "a"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := l.Acquire(ctx, "gophnote", "host", "a"); err != nil {
		t.Errorf("owner should renew its lease, got %v", err)
	}
	if err := l.Acquire(ctx, "gophnote", "host", "b"); !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked, got %v", err)
	}
	if err := l.Acquire(ctx, "gophnote", "other", "b"); err != nil {
		t.Errorf("other account should be free, got %v", err)
	}

	// A release by a non-owner leaves the lease in place.
	l.Release(ctx, "gophnote", "host", "b")
	if err := l.Acquire(ctx, "gophnote", "host", "b"); !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked after foreign release, got %v", err)
	}

	now = now.Add(DefaultLeaseTTL + time.Second)
	if err := l.Acquire(ctx, "gophnote", "host", "b"); err != nil {
		t.Errorf("expired lease should be taken over, got %v", err)
	}
	l.Release(ctx, "gophnote", "host", "b")
	if err := l.Acquire(ctx, "gophnote", "host", "a"); err != nil {
		t.Errorf("released lease should be free, got %v", err)
	}
}

type conditionalDynamo struct {
	put    *dynamodb.PutItemInput
	del    *dynamodb.DeleteItemInput
	putErr error
	delErr error
}

func (f *conditionalDynamo) GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{}, nil
}

func (f *conditionalDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.put = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *conditionalDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.del = in
	return &dynamodb.DeleteItemOutput{}, f.delErr
}

func TestDynamoLocker(t *testing.T) {
	ctx := context.Background()
	f := &conditionalDynamo{}
	l := NewDynamoLocker(f, "Leases")
	l.now = func() time.Time { return time.Unix(1000, 0) }

	if err := l.Acquire(ctx, "gophnote", "host", "owner-1"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if got := *f.put.TableName; got != "Leases" {
		t.Errorf("unexpected table %q", got)
	}
	if got := f.put.Item["lock_key"].(*types.AttributeValueMemberS).Value; got != "gophnote#host" {
		t.Errorf("unexpected lock key %q", got)
	}
	if got := f.put.Item["expires_at"].(*types.AttributeValueMemberN).Value; got != "1300" {
		t.Errorf("unexpected expiry %q", got)
	}
	if got := f.put.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN).Value; got != "1000" {
		t.Errorf("unexpected :now %q", got)
	}

	f.putErr = &types.ConditionalCheckFailedException{}
	if err := l.Acquire(ctx, "gophnote", "host", "owner-2"); !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked, got %v", err)
	}
	f.putErr = errors.New("throttled")
	if err := l.Acquire(ctx, "gophnote", "host", "owner-2"); err == nil || errors.Is(err, ErrLocked) {
		t.Errorf("Expected a plain failure, got %v", err)
	}

	f.delErr = &types.ConditionalCheckFailedException{}
	if err := l.Release(ctx, "gophnote", "host", "owner-2"); err != nil {
		t.Errorf("releasing a lease held by another owner should be a no-op, got %v", err)
	}
	if got := f.del.ExpressionAttributeValues[":owner"].(*types.AttributeValueMemberS).Value; got != "owner-2" {
		t.Errorf("unexpected owner condition %q", got)
	}
}

func TestDynamoLocker_Fallback(t *testing.T) {
	ctx := context.Background()
	l := NewDynamoLocker(nil, "Leases")
	if err := l.Acquire(ctx, "s", "a", "x"); err != nil {
		t.Fatal(err)
	}
	if err := l.Acquire(ctx, "s", "a", "y"); !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked, got %v", err)
	}
}
