package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// profileItem is the table row for one profile. The document itself is JSON
// in Data; GSI1 lists every profile ordered by id.
type profileItem struct {
	PK       string `dynamodbav:"PK"`
	SK       string `dynamodbav:"SK"`
	GSI1PK   string `dynamodbav:"GSI1PK"`
	GSI1SK   string `dynamodbav:"GSI1SK"`
	ParentID string `dynamodbav:"parentId,omitempty"`
	Version  int    `dynamodbav:"version"`
	Data     string `dynamodbav:"data"`
}

func profileKey(id string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"PK": &ddbtypes.AttributeValueMemberS{Value: profilePK(id)},
		"SK": &ddbtypes.AttributeValueMemberS{Value: configSK()},
	}
}

// GetProfile retrieves a profile definition.
func (s *Store) GetProfile(ctx context.Context, id string) (*types.Profile, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		Key:            profileKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get profile: %w", err)
	}
	if out.Item == nil {
		return nil, &types.ProfileNotFoundError{ID: id}
	}
	return decodeProfile(out.Item)
}

// PutProfile stores a profile definition, replacing any existing one.
func (s *Store) PutProfile(ctx context.Context, p types.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}
	item, err := attributevalue.MarshalMap(profileItem{
		PK:       profilePK(p.ID),
		SK:       configSK(),
		GSI1PK:   profileTypeKey(),
		GSI1SK:   profilePK(p.ID),
		ParentID: p.ParentID,
		Version:  p.Version,
		Data:     string(data),
	})
	if err != nil {
		return fmt.Errorf("marshaling profile item: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: item}); err != nil {
		return fmt.Errorf("dynamodb put profile: %w", err)
	}
	return nil
}

// ListProfiles returns every stored profile via GSI1, ordered by id.
func (s *Store) ListProfiles(ctx context.Context) ([]types.Profile, error) {
	var (
		out   []types.Profile
		start map[string]ddbtypes.AttributeValue
	)
	for {
		page, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.tableName,
			IndexName:              aws.String(gsi1Name),
			KeyConditionExpression: aws.String("GSI1PK = :pk"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":pk": &ddbtypes.AttributeValueMemberS{Value: profileTypeKey()},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb list profiles: %w", err)
		}
		for _, item := range page.Items {
			p, err := decodeProfile(item)
			if err != nil {
				s.logger.Warn("skipping corrupt profile entry", "error", err)
				continue
			}
			out = append(out, *p)
		}
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = page.LastEvaluatedKey
	}
}

// DeleteProfile removes a profile definition. Deleting an unknown id is not an error.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key:       profileKey(id),
	})
	if err != nil {
		return fmt.Errorf("dynamodb delete profile: %w", err)
	}
	return nil
}

func decodeProfile(item map[string]ddbtypes.AttributeValue) (*types.Profile, error) {
	var row profileItem
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return nil, fmt.Errorf("unmarshaling profile item: %w", err)
	}
	var p types.Profile
	if err := json.Unmarshal([]byte(row.Data), &p); err != nil {
		return nil, fmt.Errorf("unmarshaling profile %q: %w", row.PK, err)
	}
	return &p, nil
}
