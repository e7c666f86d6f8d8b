package simulation

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a small in-memory stand-in for the simulations table.
// It implements just enough of PutItem/GetItem/UpdateItem/Query to
// exercise the conditional writes the store issues.
// NOTE: intentionally minimal and not production-grade.
type simpleMock struct {
	mu          sync.Mutex
	table       map[string]map[string]types.AttributeValue
	putCalls    int
	updateCalls int
	queryCalls  int
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func itemKey(item map[string]types.AttributeValue) string {
	uid := item["user_id"].(*types.AttributeValueMemberS).Value
	sid := item["simulation_id"].(*types.AttributeValueMemberS).Value
	return uid + "#" + sid
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if params.Item == nil {
		return nil, errors.New("nil item")
	}
	k := itemKey(params.Item)
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(simulation_id)" {
		if _, ok := m.table[k]; ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.table[itemKey(params.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *simpleMock) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.table, itemKey(params.Key))
	return &dyn.DeleteItemOutput{}, nil
}

func (m *simpleMock) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	out := &dyn.QueryOutput{}
	if params.IndexName != nil {
		// status GSI
		want := params.ExpressionAttributeValues[":s"].(*types.AttributeValueMemberS).Value
		for _, item := range m.table {
			if st, ok := item["status"].(*types.AttributeValueMemberS); ok && st.Value == want {
				out.Items = append(out.Items, item)
			}
		}
		return out, nil
	}
	want := params.ExpressionAttributeValues[":uid"].(*types.AttributeValueMemberS).Value
	for _, item := range m.table {
		if uid, ok := item["user_id"].(*types.AttributeValueMemberS); ok && uid.Value == want {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

// UpdateItem supports the two condition forms the store uses and a
// placeholder-driven application of the SET expression.
func (m *simpleMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++

	item, ok := m.table[itemKey(params.Key)]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}

	vals := params.ExpressionAttributeValues
	if params.ConditionExpression != nil {
		cond := *params.ConditionExpression
		if strings.Contains(cond, "version = :ev") {
			have, _ := item["version"].(*types.AttributeValueMemberN)
			want, _ := vals[":ev"].(*types.AttributeValueMemberN)
			if have == nil || want == nil || have.Value != want.Value {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
		if strings.Contains(cond, "attribute_not_exists(batch_job_id)") {
			if _, exists := item["batch_job_id"]; exists {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}

	set := func(attr, placeholder string) {
		if v, ok := vals[placeholder]; ok {
			item[attr] = v
		}
	}
	set("status", ":s")
	set("updated_at", ":ua")
	set("version", ":nv")
	set("status_details", ":sd")
	set("progress", ":p")
	set("result_summary", ":rs")
	set("batch_job_id", ":j")
	set("expected_runtime_ms", ":er")
	// if_not_exists semantics
	if v, ok := vals[":st"]; ok {
		if _, exists := item["started_at"]; !exists {
			item["started_at"] = v
		}
	}
	if v, ok := vals[":ca"]; ok {
		if _, exists := item["completed_at"]; !exists {
			item["completed_at"] = v
		}
	}

	m.table[itemKey(params.Key)] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}
