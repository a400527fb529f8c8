package domain

import "fmt"

// KenyaCounties lists the 47 counties in official code order. Stores seed
// their county table from it.
var KenyaCounties = buildCounties(
	"Mombasa", "Kwale", "Kilifi", "Tana River", "Lamu", "Taita-Taveta",
	"Garissa", "Wajir", "Mandera", "Marsabit", "Isiolo", "Meru",
	"Tharaka-Nithi", "Embu", "Kitui", "Machakos", "Makueni", "Nyandarua",
	"Nyeri", "Kirinyaga", "Murang'a", "Kiambu", "Turkana", "West Pokot",
	"Samburu", "Trans-Nzoia", "Uasin Gishu", "Elgeyo-Marakwet", "Nandi", "Baringo",
	"Laikipia", "Nakuru", "Narok", "Kajiado", "Kericho", "Bomet",
	"Kakamega", "Vihiga", "Bungoma", "Busia", "Siaya", "Kisumu",
	"Homa Bay", "Migori", "Kisii", "Nyamira", "Nairobi",
)

func buildCounties(names ...string) []County {
	out := make([]County, len(names))
	for i, n := range names {
		out[i] = County{ID: i + 1, Code: fmt.Sprintf("%03d", i+1), Name: n}
	}
	return out
}
