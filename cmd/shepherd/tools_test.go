package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testViper(baseURL string) *viper.Viper {
	v := viper.New()
	v.Set("tools-base-url", baseURL)
	v.Set("tools-path-style", "snake")
	v.Set("tool-timeout", 5*time.Second)
	return v
}

func TestToolConfigFromViper(t *testing.T) {
	v := testViper("http://cms.local")
	v.Set("max-parallel-tools", 4)
	v.Set("denied-tools", []string{"delete_*"})

	cfg := toolConfigFromViper(v)
	assert.Equal(t, 4, cfg.MaxParallelTools)
	assert.Equal(t, 5*time.Second, cfg.ExecutionTimeout)
	assert.False(t, cfg.IsToolAllowed("delete_member"))
	assert.True(t, cfg.IsToolAllowed("search_members"))
}

type rowRecorder struct {
	rows []types.Row
}

func (r *rowRecorder) AddRow(ctx context.Context, row types.Row) error {
	r.rows = append(r.rows, row)
	return nil
}

func (r *rowRecorder) Close(ctx context.Context) error {
	return nil
}

func rowString(t *testing.T, row types.Row, key string) string {
	t.Helper()
	v, ok := row.Get(key)
	require.True(t, ok, key)
	s, ok := v.(string)
	require.True(t, ok, key)
	return s
}

func TestListTools(t *testing.T) {
	v := testViper("http://cms.local")
	v.Set("allowed-tools", []string{"search_*", "get_member_*"})

	gp := &rowRecorder{}
	require.NoError(t, listTools(context.Background(), v, &ToolsListSettings{}, gp))
	require.NotEmpty(t, gp.rows)
	for _, row := range gp.rows {
		name := rowString(t, row, "name")
		assert.True(t, strings.HasPrefix(name, "search_") || strings.HasPrefix(name, "get_member_"), name)
		assert.Equal(t, "http://cms.local/api/tools/"+name, rowString(t, row, "endpoint"))
		_, ok := row.Get("parameters")
		assert.False(t, ok)
	}
}

func TestListTools_TagsAndSchema(t *testing.T) {
	v := testViper("http://cms.local")

	gp := &rowRecorder{}
	require.NoError(t, listTools(context.Background(), v, &ToolsListSettings{
		Tags:       []string{"Finance"},
		WithSchema: true,
	}, gp))
	require.NotEmpty(t, gp.rows)
	for _, row := range gp.rows {
		assert.Contains(t, rowString(t, row, "tags"), "finance")
		params, ok := row.Get("parameters")
		require.True(t, ok)
		assert.Equal(t, "object", params.(map[string]interface{})["type"])
	}
}

func TestListTools_BadPathStyle(t *testing.T) {
	v := testViper("http://cms.local")
	v.Set("tools-path-style", "camel")
	assert.Error(t, listTools(context.Background(), v, &ToolsListSettings{}, &rowRecorder{}))
}

func TestToolsListCommand(t *testing.T) {
	listCmd, err := NewToolsListCommand(testViper("http://cms.local"))
	require.NoError(t, err)
	cobraCmd, err := cli.BuildCobraCommandFromGlazeCommand(listCmd)
	require.NoError(t, err)
	assert.Equal(t, "list", cobraCmd.Name())
	assert.NotNil(t, cobraCmd.Flags().Lookup("tag"))
	assert.NotNil(t, cobraCmd.Flags().Lookup("with-schema"))
	assert.NotNil(t, cobraCmd.Flags().Lookup("output"))
}

func TestExportTools(t *testing.T) {
	v := testViper("http://cms.local")
	v.Set("allowed-tools", []string{"get_departments"})

	var out bytes.Buffer
	require.NoError(t, exportTools(v, &out))
	var raw []map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, "get_departments", raw[0]["name"])
}

func TestCallTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tools/get_departments" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Not implemented"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"departments":["Choir","Ushering"]}`))
	}))
	defer srv.Close()

	v := testViper(srv.URL)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, callTool(ctx, v, "get_departments", `{}`, &out))
	assert.Contains(t, out.String(), "Choir")

	out.Reset()
	err := callTool(ctx, v, "get_dashboard_summary", `{}`, &out)
	require.Error(t, err)
	assert.Contains(t, out.String(), "Not implemented")

	assert.Error(t, callTool(ctx, v, "get_departments", `{nope`, &out))
}
