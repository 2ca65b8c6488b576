package ddb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Locker implements ports.Locker with conditional writes. Expiry is checked against
// expires_at (milliseconds); the ttl attribute lets DynamoDB reap abandoned locks.
type Locker struct {
	table string
	cli   *dynamodb.Client
	now   func() time.Time
}

type lockItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Owner     string `dynamodbav:"owner"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	TTL       int64  `dynamodbav:"ttl"`
}

func NewLocker(table string, cli *dynamodb.Client) *Locker {
	return &Locker{table: table, cli: cli, now: time.Now}
}

func (l *Locker) TryAcquire(ctx context.Context, k, owner string, ttl time.Duration) (bool, error) {
	now := l.now()
	exp := now.Add(ttl)
	av, err := attributevalue.MarshalMap(lockItem{
		PK:        pkLock(k),
		SK:        SLock,
		Owner:     owner,
		ExpiresAt: exp.UnixMilli(),
		TTL:       exp.Add(time.Minute).Unix(),
	})
	if err != nil {
		return false, err
	}
	_, err = l.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                &l.table,
		Item:                     av,
		ConditionExpression:      awsString("attribute_not_exists(PK) OR #exp <= :now"),
		ExpressionAttributeNames: map[string]string{"#exp": "expires_at"},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":now": &ddbTypes.AttributeValueMemberN{Value: itoa(now.UnixMilli())},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *Locker) Release(ctx context.Context, k, owner string) (bool, error) {
	_, err := l.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                &l.table,
		Key:                      key(pkLock(k), SLock),
		ConditionExpression:      awsString("#owner = :owner AND #exp > :now"),
		ExpressionAttributeNames: map[string]string{"#owner": "owner", "#exp": "expires_at"},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":owner": &ddbTypes.AttributeValueMemberS{Value: owner},
			":now":   &ddbTypes.AttributeValueMemberN{Value: itoa(l.now().UnixMilli())},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
