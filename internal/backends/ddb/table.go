package ddb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	SSite         = "SITE"
	SArchive      = "ARCHIVE"
	SSeq          = "SEQ"
	SInvalidation = "INVALIDATION"
	SDate         = "DATE"
	SLock         = "LOCK"
)

func pkSite(id int) string      { return fmt.Sprintf("%s#%d", SSite, id) }
func skProfile() string         { return "PROFILE" }
func skArchive(id int64) string { return fmt.Sprintf("%s#%020d", SArchive, id) }
func pkArchive(id int64) string { return fmt.Sprintf("%s#%d", SArchive, id) }
func skMeta() string            { return "META" }
func pkSeq() string             { return SSeq }
func pkInvalidations() string   { return SInvalidation }
func skDate(date string) string { return fmt.Sprintf("%s#%s", SDate, date) }
func pkLock(key string) string  { return fmt.Sprintf("%s#%s", SLock, key) }
func key(pk, sk string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: pk},
		"SK": &ddbTypes.AttributeValueMemberS{Value: sk},
	}
}

func parseDate(sk string) (string, error) {
	var d string
	if _, err := fmt.Sscanf(sk, SDate+"#%s", &d); err != nil {
		return "", err
	}
	return d, nil
}

// EnsureTable creates the single table if it does not exist yet.
func EnsureTable(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &table,
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: awsString("PK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
			{AttributeName: awsString("SK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: awsString("PK"), KeyType: ddbTypes.KeyTypeHash},
			{AttributeName: awsString("SK"), KeyType: ddbTypes.KeyTypeRange},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var re *ddbTypes.ResourceInUseException
	if err != nil && !errors.As(err, &re) {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// queryAll pages through a query on one partition.
func queryAll(ctx context.Context, cli *dynamodb.Client, in *dynamodb.QueryInput) ([]map[string]ddbTypes.AttributeValue, error) {
	var items []map[string]ddbTypes.AttributeValue
	p := dynamodb.NewQueryPaginator(cli, in)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
	}
	return items, nil
}

func isConditionFailed(err error) bool {
	var cc *ddbTypes.ConditionalCheckFailedException
	return errors.As(err, &cc)
}

func itoa(i int64) string { return strconv.FormatInt(i, 10) }

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
