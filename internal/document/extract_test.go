package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/document/documenttest"
)

func TestExtractPDF(t *testing.T) {
	text, err := ExtractPDF(documenttest.MinimalPDF("Bilancio 2024"))
	require.NoError(t, err)
	assert.Contains(t, text, "Bilancio 2024")
}

func TestExtractPDF_Malformed(t *testing.T) {
	_, err := ExtractPDF([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestExtractXLSX_AllSheets(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Nome", "Valore"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{" ricavi ", 10}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]any{"costi"}))
	_, err := f.NewSheet("Secondo")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Secondo", "A1", &[]any{"x", "y"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	text, err := ExtractXLSX(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Nome|Valore\nricavi|10\ncosti|\nx|y", text)
}

func TestExtractXLS_AllSheets(t *testing.T) {
	content := documenttest.MinimalXLS(
		documenttest.XLSSheet{Name: "Prezzi", Rows: map[int][]any{
			0: {"Articolo", "Prezzo"},
			2: {"  Vite  ", 0.25},
			3: {"   "},
			5: {"Dado", nil, "sfuso"},
		}},
		documenttest.XLSSheet{Name: "Note", Rows: map[int][]any{
			0: {"Consegna", 3},
			1: {"Però", 12.5},
		}},
	)

	text, err := ExtractXLS(content)
	require.NoError(t, err)
	assert.Equal(t, "Articolo|Prezzo|\nVite|0.25|\nDado||sfuso\nConsegna|3\nPerò|12.5", text)

	text, err = Extract("listino.XLS", content)
	require.NoError(t, err)
	assert.Contains(t, text, "Consegna|3")
}

func TestExtractXLS_Malformed(t *testing.T) {
	valid := documenttest.MinimalXLS(documenttest.XLSSheet{Name: "Foglio1", Rows: map[int][]any{0: {"a"}}})

	tests := []struct {
		name    string
		content []byte
	}{
		{"not a compound file", []byte("not an xls")},
		{"truncated before directory", valid[:1024]},
		{"dangling shared string", documenttest.MinimalXLS(documenttest.XLSSheet{
			Name: "Rotto",
			Rows: map[int][]any{0: {documenttest.SharedString(9)}},
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = ExtractXLS(tt.content) })
			assert.Error(t, err)
		})
	}
}

func TestExtract_Dispatch(t *testing.T) {
	_, err := Extract("notes.docx", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	text, err := Extract("REPORT.PDF", documenttest.MinimalPDF("ok"))
	require.NoError(t, err)
	assert.Contains(t, text, "ok")
}

func TestFlattenRows(t *testing.T) {
	rows := [][]string{
		{"a", " b "},
		{"", "  "},
		{},
		{"c"},
	}
	assert.Equal(t, []string{"a|b", "c|"}, FlattenRows(rows))
}
