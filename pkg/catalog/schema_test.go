package catalog

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeClassification(t *testing.T) {
	numeric := []string{"INTEGER", "BIGINT", "DECIMAL(10,2)", "REAL", "NUMBER(38,0)", "double"}
	for _, dt := range numeric {
		assert.True(t, IsNumericType(dt), "IsNumericType(%q)", dt)
	}

	text := []string{"VARCHAR(255)", "TEXT", "string", "CHAR(1)"}
	for _, dt := range text {
		assert.True(t, IsTextType(dt), "IsTextType(%q)", dt)
	}

	neither := []string{"DATE", "TIMESTAMP", "BOOLEAN", "BLOB"}
	for _, dt := range neither {
		assert.False(t, IsNumericType(dt) || IsTextType(dt), "%q should be neither", dt)
	}
}

func TestLocalTableSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name, type FROM pragma_table_info").
		WithArgs("sales").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}).
			AddRow("region", "TEXT").
			AddRow("amount", "INTEGER"))

	schema, err := LocalTableSchema(context.Background(), db, "sales", false)
	require.NoError(t, err)

	assert.Equal(t, "sales", schema.Table)
	assert.Empty(t, schema.Connection)
	require.Len(t, schema.Columns, 2)
	assert.Equal(t, ColumnSchema{Name: "region", DataType: "TEXT"}, schema.Columns[0])
	assert.Equal(t, ColumnSchema{Name: "amount", DataType: "INTEGER"}, schema.Columns[1])
}

func TestLocalTableSchema_WithStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name, type FROM pragma_table_info").
		WithArgs("sales").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}).
			AddRow("amount", "INTEGER").
			AddRow("region", "TEXT"))

	mock.ExpectQuery(`SELECT MIN\("amount"\), MAX\("amount"\)`).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max"}).AddRow("1", "42"))

	mock.ExpectQuery(`SELECT DISTINCT "region"`).
		WillReturnRows(sqlmock.NewRows([]string{"region"}).
			AddRow("west").
			AddRow("east"))

	schema, err := LocalTableSchema(context.Background(), db, "sales", true)
	require.NoError(t, err)

	assert.Equal(t, "1", schema.Columns[0].MinValue)
	assert.Equal(t, "42", schema.Columns[0].MaxValue)
	assert.Equal(t, []string{"east", "west"}, schema.Columns[1].CategoricalValues)
}

func TestLocalTableSchema_StatsFailureIsBestEffort(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name, type FROM pragma_table_info").
		WithArgs("t").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}).AddRow("n", "INTEGER"))

	mock.ExpectQuery("SELECT MIN").WillReturnError(assert.AnError)

	schema, err := LocalTableSchema(context.Background(), db, "t", true)
	require.NoError(t, err, "stat failures must not fail schema extraction")
	assert.Empty(t, schema.Columns[0].MinValue)
}

func TestLocalTableSchema_TooManyCategoricals(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name, type FROM pragma_table_info").
		WithArgs("t").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}).AddRow("c", "TEXT"))

	values := sqlmock.NewRows([]string{"c"})
	for i := 0; i < maxCategoricalValues+1; i++ {
		values.AddRow("v")
	}
	mock.ExpectQuery("SELECT DISTINCT").WillReturnRows(values)

	schema, err := LocalTableSchema(context.Background(), db, "t", true)
	require.NoError(t, err)
	assert.Nil(t, schema.Columns[0].CategoricalValues,
		"columns over the cardinality bound get no categorical values")
}

func TestRemoteTableSchemas(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}).
			AddRow("orders", "id", "integer").
			AddRow("orders", "total", "numeric").
			AddRow("users", "email", "text"))

	schemas, err := RemoteTableSchemas(context.Background(), db, "prod_pg")
	require.NoError(t, err)

	require.Len(t, schemas, 2)
	assert.Equal(t, "orders", schemas[0].Table)
	assert.Equal(t, "prod_pg", schemas[0].Connection)
	assert.Len(t, schemas[0].Columns, 2)
	assert.Equal(t, "users", schemas[1].Table)
	assert.Len(t, schemas[1].Columns, 1)
}
