package ddb

import (
	"archivist/internal/types"
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Ledger stores one item per remembered date (INVALIDATION, DATE#<date>) holding a number set
// of site ids. Set updates are atomic on the server.
type Ledger struct {
	table string
	cli   *dynamodb.Client
}

type ledgerItem struct {
	PK    string `dynamodbav:"PK"`
	SK    string `dynamodbav:"SK"`
	Sites []int  `dynamodbav:"sites,numberset"`
}

func NewLedger(table string, cli *dynamodb.Client) *Ledger {
	return &Ledger{table: table, cli: cli}
}

func (l *Ledger) Pending(ctx context.Context) (map[string][]int, error) {
	items, err := queryAll(ctx, l.cli, &dynamodb.QueryInput{
		TableName:              &l.table,
		KeyConditionExpression: awsString("PK = :pk"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pk": &ddbTypes.AttributeValueMemberS{Value: pkInvalidations()},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, types.StoreErr(err, "list remembered invalidations")
	}
	out := make(map[string][]int, len(items))
	for _, it := range items {
		var item ledgerItem
		if err := attributevalue.UnmarshalMap(it, &item); err != nil {
			return nil, types.StoreErr(err, "decode remembered invalidation")
		}
		if len(item.Sites) == 0 {
			continue
		}
		date, err := parseDate(item.SK)
		if err != nil {
			return nil, types.StoreErr(err, "remembered invalidation key %q", item.SK)
		}
		slices.Sort(item.Sites)
		out[date] = item.Sites
	}
	return out, nil
}

func (l *Ledger) Remember(ctx context.Context, date time.Time, siteIDs ...int) error {
	if len(siteIDs) == 0 {
		return nil
	}
	d := date.Format(types.DateLayout)
	_, err := l.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &l.table,
		Key:                       key(pkInvalidations(), skDate(d)),
		UpdateExpression:          awsString("ADD #sites :ids"),
		ExpressionAttributeNames:  map[string]string{"#sites": "sites"},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{":ids": numberSet(siteIDs)},
	})
	return types.StoreErr(err, "remember invalidation of %s", d)
}

func (l *Ledger) Forget(ctx context.Context, date time.Time, siteIDs ...int) error {
	if len(siteIDs) == 0 {
		return nil
	}
	d := date.Format(types.DateLayout)
	_, err := l.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &l.table,
		Key:                       key(pkInvalidations(), skDate(d)),
		UpdateExpression:          awsString("DELETE #sites :ids"),
		ExpressionAttributeNames:  map[string]string{"#sites": "sites"},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{":ids": numberSet(siteIDs)},
	})
	if err != nil {
		return types.StoreErr(err, "forget invalidation of %s", d)
	}
	// an emptied set removes the attribute; drop the item with it
	_, err = l.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                &l.table,
		Key:                      key(pkInvalidations(), skDate(d)),
		ConditionExpression:      awsString("attribute_not_exists(#sites)"),
		ExpressionAttributeNames: map[string]string{"#sites": "sites"},
	})
	if err != nil && !isConditionFailed(err) {
		return types.StoreErr(err, "drop invalidation of %s", d)
	}
	return nil
}

func numberSet(ids []int) ddbTypes.AttributeValue {
	ns := make([]string, len(ids))
	for i, id := range ids {
		ns[i] = strconv.Itoa(id)
	}
	return &ddbTypes.AttributeValueMemberNS{Value: ns}
}
