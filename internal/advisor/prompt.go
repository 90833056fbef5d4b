package advisor

import (
	"fmt"
	"strings"
	"time"

	"duit/internal/core"
)

// recentWindow is how far back food transactions are included in the prompt.
const recentWindow = 30 * 24 * time.Hour

func dietProfileDescription(p core.DietPreference) string {
	switch p {
	case core.DietPregnancy:
		return "Pengguna adalah ibu hamil yang membutuhkan nutrisi penting untuk kesehatan ibu dan perkembangan janin, seperti asam folat, zat besi, dan kalsium."
	case core.DietBulking:
		return "Pengguna ingin menaikkan berat badan secara sehat (menambah massa otot, bukan hanya lemak) dengan diet surplus kalori yang bergizi."
	case core.DietKidGrowth:
		return "Pengguna fokus menyediakan makanan bergizi untuk mendukung pertumbuhan dan perkembangan optimal anak-anak."
	case core.DietVegetarian:
		return "Pengguna adalah seorang vegetarian yang ingin memastikan asupan gizi seimbang dari sumber nabati."
	case core.DietLowSugar:
		return "Pengguna fokus pada diet rendah gula untuk menjaga kadar gula darah dan kesehatan secara umum."
	default:
		return "Pengguna ingin makan lebih sehat untuk jangka panjang, menghindari makanan tidak sehat (gorengan, terlalu manis, olahan), dan menjaga berat badan ideal."
	}
}

// RecentFoodLines renders the owner's food transactions from the last 30 days
// as prompt bullet lines, newest input order preserved.
func RecentFoodLines(transactions []core.Transaction, foodCategoryID string, now time.Time) []string {
	cutoff := now.Add(-recentWindow)
	var lines []string
	for _, t := range transactions {
		if t.CategoryID != foodCategoryID || !t.Date.After(cutoff) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (Rp %s)",
			t.Date.Format("2006-01-02"), t.Description, FormatIDR(t.Amount)))
	}
	return lines
}

// FormatIDR groups digits with dots, the id-ID convention.
func FormatIDR(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := fmt.Sprintf("%d", amount)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BuildPrompt assembles the analysis prompt sent to the model.
func BuildPrompt(profile core.HealthProfile, foodBudget int64, foodLines []string) string {
	return fmt.Sprintf(`
Anda adalah asisten keuangan dan gizi pribadi yang cerdas, ramah, dan praktis untuk aplikasi 'Manajer Keuangan Cerdas'. Tugas Anda adalah menganalisis data pengguna dan memberikan wawasan yang bermanfaat dalam Bahasa Indonesia.

Berikut adalah data pengguna:
- Profil Kesehatan: %s
- Budget Makanan Bulanan: Rp %s.
- Transaksi Makanan 30 Hari Terakhir:
%s

Tugas Anda, berdasarkan data di atas, berikan analisis dalam format JSON.
`,
		dietProfileDescription(profile.DietPreference),
		FormatIDR(foodBudget),
		strings.Join(foodLines, "\n"))
}
