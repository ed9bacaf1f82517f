package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"advisory/api/internal/advisory"
	"advisory/api/internal/store"
)

const utf8BOM = "\uFEFF"

var csvHeader = []string{
	"No",
	"Tanggal Permohonan",
	"Nama Pemohon",
	"Divisi/Instansi",
	"Unit Bisnis",
	"Jenis Advisory",
	"Data/Informasi",
	"Advisory Diinginkan",
	"Status",
	"No Registrasi",
	"Tanggal Jawaban",
	"Technical Advisory Note",
	"Penjawab",
}

// CSVFilename is the download name for an export made at now.
func CSVFilename(now time.Time) string {
	return "advisory_questions_" + now.Format("2006-01-02") + ".csv"
}

// WriteCSV writes questions as a spreadsheet friendly CSV: UTF-8 BOM, every
// cell quoted, notes reduced to plain text.
func WriteCSV(w io.Writer, questions []store.QuestionWithAnswer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(utf8BOM); err != nil {
		return err
	}
	// header cells are plain, matching what spreadsheet users already import
	if _, err := bw.WriteString(strings.Join(csvHeader, ",") + "\n"); err != nil {
		return err
	}
	for i, q := range questions {
		if err := writeQuotedRow(bw, csvRow(i+1, q)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func csvRow(n int, q store.QuestionWithAnswer) []string {
	noRegistrasi, answeredAt, note, answerer := "-", "-", "-", "-"
	if q.Answer != nil {
		noRegistrasi = q.Answer.NoRegistrasi
		answeredAt = FormatDateID(q.Answer.TanggalJawaban)
		if text := StripTags(q.Answer.TechnicalAdvisoryNote); text != "" {
			note = text
		}
		if q.AnswererName != "" {
			answerer = q.AnswererName
		}
	}
	return []string{
		strconv.Itoa(n),
		FormatDateID(q.TanggalPermohonan),
		q.NamaPemohon,
		q.DivisiInstansi,
		q.UnitBisnis,
		advisory.DescribeCategories(q.JenisAdvisory),
		q.DataInformasi,
		q.AdvisoryDiinginkan,
		q.Status.Label(),
		noRegistrasi,
		answeredAt,
		note,
		answerer,
	}
}

func writeQuotedRow(w *bufio.Writer, cells []string) error {
	for i, cell := range cells {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(cell, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}
