package keychain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultLeaseTTL bounds how long a crashed owner can hold an entry.
const DefaultLeaseTTL = 5 * time.Minute

// ErrLocked is returned by Acquire while another owner holds the lease.
var ErrLocked = errors.New("keychain: entry is leased by another owner")

// Locker leases a keychain entry to one owner at a time, so processes
// sharing a store do not write the same credential concurrently. Acquire by
// the current owner renews the lease.
type Locker interface {
	Acquire(ctx context.Context, service, account, owner string) error
	Release(ctx context.Context, service, account, owner string) error
}

type lease struct {
	Key       string `dynamodbav:"lock_key"`
	Owner     string `dynamodbav:"owner"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// DynamoLocker keeps leases in a DynamoDB table keyed by "service#account",
// relying on conditional writes and the table's TTL on expires_at. With a
// nil client it falls back to process memory.
type DynamoLocker struct {
	client    DynamoClient
	tableName string
	ttl       time.Duration
	now       func() time.Time
	fallback  *MemoryLocker
}

func NewDynamoLocker(client DynamoClient, tableName string) *DynamoLocker {
	return &DynamoLocker{
		client:    client,
		tableName: tableName,
		ttl:       DefaultLeaseTTL,
		now:       time.Now,
		fallback:  NewMemoryLocker(),
	}
}

// Acquire succeeds when no lease exists, the lease expired, or owner
// already holds it.
func (l *DynamoLocker) Acquire(ctx context.Context, service, account, owner string) error {
	if l.client == nil {
		return l.fallback.Acquire(ctx, service, account, owner)
	}

	now := l.now().Unix()
	av, err := attributevalue.MarshalMap(lease{
		Key:       itemKey(service, account),
		Owner:     owner,
		ExpiresAt: now + int64(l.ttl.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal lease: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(lock_key) OR expires_at < :now OR #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrLocked
		}
		return fmt.Errorf("failed to acquire lease: %w", err)
	}
	return nil
}

// Release drops the lease if owner holds it. Releasing a lease that expired
// or moved to another owner is not an error.
func (l *DynamoLocker) Release(ctx context.Context, service, account, owner string) error {
	if l.client == nil {
		return l.fallback.Release(ctx, service, account, owner)
	}

	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"lock_key": &types.AttributeValueMemberS{Value: itemKey(service, account)},
		},
		ConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

// MemoryLocker keeps leases in process memory.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]lease), ttl: DefaultLeaseTTL, now: time.Now}
}

func (m *MemoryLocker) Acquire(_ context.Context, service, account, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().Unix()
	key := itemKey(service, account)
	if existing, ok := m.leases[key]; ok && existing.ExpiresAt > now && existing.Owner != owner {
		return ErrLocked
	}
	m.leases[key] = lease{Key: key, Owner: owner, ExpiresAt: now + int64(m.ttl.Seconds())}
	return nil
}

func (m *MemoryLocker) Release(_ context.Context, service, account, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := itemKey(service, account)
	if existing, ok := m.leases[key]; ok && existing.Owner == owner {
		delete(m.leases, key)
	}
	return nil
}
