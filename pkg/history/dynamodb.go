package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/williamokano/web_deployer/pkg/awsclient"
)

const defaultTableName = "web_deployer_history"

// dynamoItem is a record plus its range key. The table is keyed on
// (project, sk) where sk sorts chronologically.
type dynamoItem struct {
	Record
	SK string `dynamodbav:"sk"`
}

type dynamoStore struct {
	client *dynamodb.Client
	table  string
	logger zerolog.Logger
}

func init() {
	Register("dynamodb", func(ctx context.Context, opts OpenOptions) (Store, error) {
		return newDynamoStore(ctx, opts)
	})
}

func newDynamoStore(ctx context.Context, opts OpenOptions) (*dynamoStore, error) {
	table, _ := opts.Config.Options["table"].(string)
	if table == "" {
		table = defaultTableName
	}

	s := &dynamoStore{
		client: awsclient.NewDynamoDB(opts.AWS, opts.AWSOptions),
		table:  table,
		logger: opts.Logger.With().Str("history", "dynamodb").Logger(),
	}

	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *dynamoStore) ensureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe history table: %w", err)
	}

	s.logger.Info().Str("table", s.table).Msg("creating history table")

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(s.table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("project"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("project"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("history table did not become active: %w", err)
	}

	return nil
}

// Append stores a new record
func (s *dynamoStore) Append(ctx context.Context, rec Record) error {
	item, err := attributevalue.MarshalMap(dynamoItem{Record: rec, SK: rec.SortKey()})
	if err != nil {
		return fmt.Errorf("failed to encode history record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store history record: %w", err)
	}

	return nil
}

// List returns records for a project, newest first
func (s *dynamoStore) List(ctx context.Context, project string) ([]Record, error) {
	if project == "" {
		return s.scanAll(ctx)
	}

	items, err := s.queryProject(ctx, project, false)
	if err != nil {
		return nil, err
	}

	return toRecords(items), nil
}

// Prune removes all but the newest keep records for a project
func (s *dynamoStore) Prune(ctx context.Context, project string, keep int) (int, error) {
	// Ascending order puts the oldest records first
	items, err := s.queryProject(ctx, project, true)
	if err != nil {
		return 0, err
	}

	if len(items) <= keep {
		return 0, nil
	}

	doomed := items[:len(items)-keep]
	for _, item := range doomed {
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.table),
			Key: map[string]types.AttributeValue{
				"project": &types.AttributeValueMemberS{Value: item.Project},
				"sk":      &types.AttributeValueMemberS{Value: item.SK},
			},
		})
		if err != nil {
			return 0, fmt.Errorf("failed to delete history record %s: %w", item.SK, err)
		}
	}

	return len(doomed), nil
}

// Close is a no-op for DynamoDB
func (s *dynamoStore) Close() error {
	return nil
}

// queryProject fetches all items for a project. The sort key begins with a
// fixed-width timestamp, so index order is chronological.
func (s *dynamoStore) queryProject(ctx context.Context, project string, ascending bool) ([]dynamoItem, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("#project = :project"),
		ExpressionAttributeNames: map[string]string{
			"#project": "project",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":project": &types.AttributeValueMemberS{Value: project},
		},
		ScanIndexForward: aws.Bool(ascending),
	})

	var items []dynamoItem
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query history table: %w", err)
		}

		var pageItems []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, fmt.Errorf("failed to decode history records: %w", err)
		}
		items = append(items, pageItems...)
	}

	return items, nil
}

func (s *dynamoStore) scanAll(ctx context.Context) ([]Record, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.table),
	})

	var items []dynamoItem
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history table: %w", err)
		}

		var pageItems []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, fmt.Errorf("failed to decode history records: %w", err)
		}
		items = append(items, pageItems...)
	}

	records := toRecords(items)
	sortNewestFirst(records)
	return records, nil
}

func toRecords(items []dynamoItem) []Record {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		records = append(records, item.Record)
	}
	return records
}
