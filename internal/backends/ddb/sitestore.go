package ddb

import (
	"archivist/internal/types"
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type SiteStore struct {
	table string
	cli   *dynamodb.Client
}

type siteItem struct {
	PK       string `dynamodbav:"PK"`
	SK       string `dynamodbav:"SK"`
	ID       int    `dynamodbav:"id"`
	Name     string `dynamodbav:"name"`
	Timezone string `dynamodbav:"timezone"`
}

func NewSiteStore(table string, cli *dynamodb.Client) *SiteStore {
	return &SiteStore{table: table, cli: cli}
}

func (s *SiteStore) GetSite(ctx context.Context, siteID int) (types.Site, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		Key:            key(pkSite(siteID), skProfile()),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return types.Site{}, types.StoreErr(err, "get site %d", siteID)
	}
	if out.Item == nil {
		return types.Site{}, types.Err(types.ErrNotFound, nil, "site %d", siteID)
	}
	var item siteItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return types.Site{}, types.StoreErr(err, "decode site %d", siteID)
	}
	return types.Site{ID: item.ID, Name: item.Name, Timezone: item.Timezone}, nil
}

func (s *SiteStore) PutSite(ctx context.Context, site types.Site) error {
	if site.ID <= 0 {
		return types.Err(types.ErrInvalidParams, nil, "site id must be positive, got %d", site.ID)
	}
	av, err := attributevalue.MarshalMap(siteItem{
		PK:       pkSite(site.ID),
		SK:       skProfile(),
		ID:       site.ID,
		Name:     site.Name,
		Timezone: site.Timezone,
	})
	if err != nil {
		return err
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.table, Item: av})
	return types.StoreErr(err, "put site %d", site.ID)
}
