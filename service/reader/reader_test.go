package reader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSVSeparators(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "逗号分隔", input: "Nom,Solde\njean,10\n"},
		{name: "分号分隔", input: "Nom;Solde\njean;10\n"},
		{name: "制表符分隔", input: "Nom\tSolde\njean\t10\n"},
		{name: "带BOM", input: "\ufeffNom,Solde\njean,10\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			table, err := ParseCSV(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, []string{"Nom", "Solde"}, table.Columns)
			require.Len(t, table.Rows, 1)
			assert.Equal(t, "jean", table.Rows[0]["Nom"])
			assert.Equal(t, "10", table.Rows[0]["Solde"])
		})
	}
}

func TestParseCSVSemicolonWithDecimalComma(t *testing.T) {
	table, err := ParseCSV(strings.NewReader("Nom;Solde\njean;\"1,5\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "1,5", table.Rows[0]["Solde"])
}

func TestParseCSVLatin1(t *testing.T) {
	// "Région" 的 Windows-1252 编码
	data := []byte("Nom;R\xe9gion\nb\xe9atrice;Bretagne\n")

	table, err := ParseCSV(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Nom", "Région"}, table.Columns)
	assert.Equal(t, "béatrice", table.Rows[0]["Nom"])
}

func TestParseCSVRaggedRows(t *testing.T) {
	table, err := ParseCSV(strings.NewReader("a,b,c\n1\n1,2,3,4\n\n,,\n"))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	_, present := table.Rows[0]["b"]
	assert.False(t, present)
	assert.Equal(t, "3", table.Rows[1]["c"])
}

func TestParseCSVHeaders(t *testing.T) {
	table, err := ParseCSV(strings.NewReader("\n\nnom,,nom\nx,y,z\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"nom", "column_2", "nom.1"}, table.Columns)
	assert.Equal(t, "z", table.Rows[0]["nom.1"])
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("  \n"))
	require.Error(t, err)
	assert.True(t, IsInputError(err))
}

func TestParseTable(t *testing.T) {
	dir := t.TempDir()

	t.Run("CSV文件", func(t *testing.T) {
		path := filepath.Join(dir, "clients.csv")
		require.NoError(t, os.WriteFile(path, []byte("Nom,Age\nalice,30\n"), 0o644))

		table, err := ParseTable(path)
		require.NoError(t, err)
		assert.Len(t, table.Rows, 1)
	})

	t.Run("Excel文件", func(t *testing.T) {
		path := filepath.Join(dir, "clients.xlsx")
		f := excelize.NewFile()
		require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Nom", "Solde"}))
		require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"jean", "2 500 €"}))
		require.NoError(t, f.SaveAs(path))
		require.NoError(t, f.Close())

		table, err := ParseTable(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Nom", "Solde"}, table.Columns)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, "2 500 €", table.Rows[0]["Solde"])
	})

	t.Run("文件不存在", func(t *testing.T) {
		_, err := ParseTable(filepath.Join(dir, "missing.csv"))
		require.Error(t, err)
		assert.True(t, IsInputError(err))
	})

	t.Run("不支持的扩展名", func(t *testing.T) {
		_, err := ParseTable(filepath.Join(dir, "clients.json"))
		require.Error(t, err)
		assert.True(t, IsInputError(err))
	})

	t.Run("损坏的Excel文件", func(t *testing.T) {
		path := filepath.Join(dir, "broken.xlsx")
		require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

		_, err := ParseTable(path)
		require.Error(t, err)
		assert.True(t, IsInputError(err))
	})
}
