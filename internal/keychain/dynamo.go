package keychain

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoClient is the subset of *dynamodb.Client methods used by Dynamo.
type DynamoClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type item struct {
	Key       string    `dynamodbav:"item_key"`
	Service   string    `dynamodbav:"service"`
	Account   string    `dynamodbav:"account"`
	Secret    []byte    `dynamodbav:"secret"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// Dynamo stores secrets in a DynamoDB table keyed by "service#account".
// With a nil client it falls back to process memory.
type Dynamo struct {
	client    DynamoClient
	tableName string
	fallback  *Memory
}

func NewDynamo(client DynamoClient, tableName string) *Dynamo {
	return &Dynamo{client: client, tableName: tableName, fallback: NewMemory()}
}

func (d *Dynamo) key(service, account string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"item_key": &types.AttributeValueMemberS{Value: itemKey(service, account)},
	}
}

func (d *Dynamo) Set(ctx context.Context, service, account string, secret []byte) error {
	if d.client == nil {
		return d.fallback.Set(ctx, service, account, secret)
	}

	av, err := attributevalue.MarshalMap(item{
		Key:       itemKey(service, account),
		Service:   service,
		Account:   account,
		Secret:    secret,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal keychain item: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to save keychain item to DynamoDB: %w", err)
	}
	return nil
}

func (d *Dynamo) Get(ctx context.Context, service, account string) ([]byte, error) {
	if d.client == nil {
		return d.fallback.Get(ctx, service, account)
	}

	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            d.key(service, account),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get keychain item from DynamoDB: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keychain item: %w", err)
	}
	return it.Secret, nil
}

func (d *Dynamo) Delete(ctx context.Context, service, account string) error {
	if d.client == nil {
		return d.fallback.Delete(ctx, service, account)
	}

	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.key(service, account),
	})
	if err != nil {
		return fmt.Errorf("failed to delete keychain item from DynamoDB: %w", err)
	}
	return nil
}
