package costs

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// mockDynamo keys rows per table: cost records on user_id#resource_id,
// budgets on user_id#budget_id.
// NOTE: intentionally minimal and not production-grade.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{tables: map[string]map[string]map[string]types.AttributeValue{}}
}

func rowKey(attrs map[string]types.AttributeValue) string {
	k := attrs["user_id"].(*types.AttributeValueMemberS).Value
	if rid, ok := attrs["resource_id"].(*types.AttributeValueMemberS); ok {
		return k + "#" + rid.Value
	}
	if bid, ok := attrs["budget_id"].(*types.AttributeValueMemberS); ok {
		return k + "#" + bid.Value
	}
	if sid, ok := attrs["simulation_id"].(*types.AttributeValueMemberS); ok {
		return k + "#" + sid.Value
	}
	return k
}

func (m *mockDynamo) rows(table string) map[string]map[string]types.AttributeValue {
	if m.tables[table] == nil {
		m.tables[table] = map[string]map[string]types.AttributeValue{}
	}
	return m.tables[table]
}

func (m *mockDynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows(*in.TableName)[rowKey(in.Item)] = in.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.rows(*in.TableName)[rowKey(in.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows(*in.TableName), rowKey(in.Key))
	return &dyn.DeleteItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.rows(*in.TableName)
	item, ok := rows[rowKey(in.Key)]
	if !ok {
		item = map[string]types.AttributeValue{}
		for k, v := range in.Key {
			item[k] = v
		}
	}
	// SET last_alert_period = :lp, updated_at = :ua
	if v, ok := in.ExpressionAttributeValues[":lp"]; ok {
		item["last_alert_period"] = v
	}
	if v, ok := in.ExpressionAttributeValues[":ua"]; ok {
		item["updated_at"] = v
	}
	rows[rowKey(in.Key)] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &dyn.QueryOutput{}
	// status GSI used by the simulations store
	if st, ok := in.ExpressionAttributeValues[":s"].(*types.AttributeValueMemberS); ok {
		for _, item := range m.rows(*in.TableName) {
			if s, ok := item["status"].(*types.AttributeValueMemberS); ok && s.Value == st.Value {
				out.Items = append(out.Items, item)
			}
		}
		return out, nil
	}
	uid := in.ExpressionAttributeValues[":uid"].(*types.AttributeValueMemberS).Value
	var period string
	if tp, ok := in.ExpressionAttributeValues[":tp"].(*types.AttributeValueMemberS); ok {
		period = tp.Value
	}
	for _, item := range m.rows(*in.TableName) {
		if u, ok := item["user_id"].(*types.AttributeValueMemberS); !ok || u.Value != uid {
			continue
		}
		if period != "" {
			if p, ok := item["time_period"].(*types.AttributeValueMemberS); !ok || p.Value != period {
				continue
			}
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

type mockCostExplorer struct {
	output *costexplorer.GetCostAndUsageOutput
	calls  int
}

func (m *mockCostExplorer) GetCostAndUsage(ctx context.Context, in *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	m.calls++
	return m.output, nil
}

type mockSNS struct {
	published []*sns.PublishInput
}

func (m *mockSNS) Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.published = append(m.published, in)
	return &sns.PublishOutput{}, nil
}

type mockCloudWatch struct {
	puts []*cloudwatch.PutMetricDataInput
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.puts = append(m.puts, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}
