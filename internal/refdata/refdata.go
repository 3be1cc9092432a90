// Package refdata holds the reference tables of the Colombian national
// traffic code used by the prompt composer and the context manager:
// fine tiers (Artículo 131), common infractions, mandatory documents,
// procedure costs and speed limits. Values updated for 2025. The tables
// are built once at init and are read-only afterwards.
package refdata

import (
	"fmt"
	"strings"

	"github.com/vialy-app/vialy-api/internal/domain"
)

// SMMLV2025 is the monthly minimum wage (Salario Mínimo Mensual Legal
// Vigente) for 2025; SMLDV is the daily equivalent (SMMLV / 30).
const (
	SMMLV2025 = 1_423_500
	SMLDV2025 = SMMLV2025 / 30 // $47,450
)

// FineTierCode is one of the five ordinal severity classes of Artículo 131.
type FineTierCode string

const (
	TierA FineTierCode = "A"
	TierB FineTierCode = "B"
	TierC FineTierCode = "C"
	TierD FineTierCode = "D"
	TierE FineTierCode = "E"
)

// FineTier maps a tier code to its monetary value.
type FineTier struct {
	Code        FineTierCode
	SMLDV       int
	Pesos       int
	Description string
}

// FineTiers lists the five tiers of Artículo 131 in severity order.
var FineTiers = []FineTier{
	{TierA, 4, SMLDV2025 * 4, "Vehículos no automotores o tracción animal"},
	{TierB, 8, SMLDV2025 * 8, "Infracciones leves"},
	{TierC, 15, SMLDV2025 * 15, "Infracciones moderadas"},
	{TierD, 30, SMLDV2025 * 30, "Infracciones graves"},
	{TierE, 45, SMLDV2025 * 45, "Infracciones muy graves"},
}

// Infraction describes one common infraction: its statute citation, fine
// tier, extra sanctions, and the keywords the context manager uses to
// detect it in user messages.
type Infraction struct {
	Key            string
	Description    string
	Tier           FineTierCode
	Article        string
	OtherSanctions []string
	Keywords       []string
}

// Infractions lists the common infractions in a fixed order so keyword
// detection is deterministic.
var Infractions = []Infraction{
	{
		Key:         "exceso_velocidad",
		Description: "Conducir a velocidad superior a la máxima permitida (C.29)",
		Tier:        TierC,
		Article:     "131-C.29",
		Keywords:    []string{"exceso", "velocidad", "rápido", "límite"},
	},
	{
		Key:            "conducir_sin_licencia",
		Description:    "Guiar un vehículo sin licencia de conducción (D.1)",
		Tier:           TierD,
		Article:        "131-D.1",
		OtherSanctions: []string{"Inmovilización del vehículo"},
		Keywords:       []string{"licencia", "sin", "no tiene"},
	},
	{
		Key:         "no_cinturon",
		Description: "No utilizar cinturón de seguridad (C.6)",
		Tier:        TierC,
		Article:     "131-C.6",
		Keywords:    []string{"cinturón", "cinturon", "seguridad"},
	},
	{
		Key:            "semaforo_rojo",
		Description:    "No detenerse ante luz roja o señal de PARE (D.4)",
		Tier:           TierD,
		Article:        "131-D.4",
		OtherSanctions: []string{"Inmovilización (motos)"},
		Keywords:       []string{"semáforo", "rojo", "roja", "luz roja"},
	},
	{
		Key:            "no_soat",
		Description:    "Conducir sin portar SOAT (D.2)",
		Tier:           TierD,
		Article:        "131-D.2",
		OtherSanctions: []string{"Inmovilización del vehículo"},
		Keywords:       []string{"soat", "seguro"},
	},
	{
		Key:         "celular_conduciendo",
		Description: "Usar celular mientras conduce sin manos libres (C.38)",
		Tier:        TierC,
		Article:     "131-C.38",
		Keywords:    []string{"celular", "telefono", "teléfono", "mano"},
	},
	{
		Key:         "estacionar_prohibido",
		Description: "Estacionar en sitios prohibidos (C.2)",
		Tier:        TierC,
		Article:     "131-C.2",
		Keywords:    []string{"estacionar", "estacionamiento", "parqueo", "aparcar"},
	},
	{
		Key:         "sin_licencia_porte",
		Description: "Conducir sin llevar consigo la licencia (B.1)",
		Tier:        TierB,
		Article:     "131-B.1",
	},
	{
		Key:            "sentido_contrario",
		Description:    "Transitar en sentido contrario (D.3)",
		Tier:           TierD,
		Article:        "131-D.3",
		OtherSanctions: []string{"Inmovilización (motos)"},
		Keywords:       []string{"sentido contrario", "contravía", "contravia"},
	},
	{
		Key:            "revision_tecnomecanica",
		Description:    "No realizar revisión técnico-mecánica (C.35)",
		Tier:           TierC,
		Article:        "131-C.35",
		OtherSanctions: []string{"Inmovilización del vehículo"},
		Keywords:       []string{"tecnomecánica", "tecnomecanica", "revisión técnica"},
	},
}

// MandatoryDocument is a document every driver must carry.
type MandatoryDocument struct {
	Name        string
	Description string
}

var MandatoryDocuments = []MandatoryDocument{
	{"Licencia de conducción", "Vigente y correspondiente a la categoría del vehículo"},
	{"Documento de identidad", "Cédula de ciudadanía o extranjería"},
	{"SOAT", "Seguro Obligatorio de Accidentes de Tránsito vigente"},
	{"Tarjeta de propiedad", "Documento de propiedad del vehículo"},
	{"Certificado de revisión técnico-mecánica", "Para vehículos particulares de más de 2 años"},
}

// ProcedureCost is an approximate 2025 cost range for a common procedure.
type ProcedureCost struct {
	Key         string
	Min         int
	Max         int
	Description string
}

var ProcedureCosts = []ProcedureCost{
	{"licencia_nueva", 350_000, 500_000, "Obtener licencia nueva por primera vez"},
	{"renovacion_licencia", 200_000, 300_000, "Renovación de licencia de conducción"},
	{"soat_moto", 350_000, 450_000, "SOAT para motocicleta"},
	{"soat_carro", 500_000, 800_000, "SOAT para automóvil"},
	{"revision_tecnomecanica", 70_000, 150_000, "Revisión técnico-mecánica"},
	{"examen_medico", 40_000, 80_000, "Examen médico para licencia"},
	{"curso_conduccion", 800_000, 1_500_000, "Curso de conducción completo"},
}

// SpeedLimits maps zone names to km/h limits.
var SpeedLimits = map[string]int{
	"zona_escolar":            30,
	"zona_residencial":        30,
	"zona_urbana":             50,
	"zona_rural":              80,
	"autopista":               100,
	"autopista_doble_calzada": 120,
}

var (
	tiersByCode      map[FineTierCode]FineTier
	infractionsByKey map[string]Infraction
)

func init() {
	tiersByCode = make(map[FineTierCode]FineTier, len(FineTiers))
	for _, t := range FineTiers {
		tiersByCode[t.Code] = t
	}
	infractionsByKey = make(map[string]Infraction, len(Infractions))
	for _, inf := range Infractions {
		infractionsByKey[inf.Key] = inf
	}
}

// TierByCode looks up a fine tier by its letter code.
func TierByCode(code FineTierCode) (FineTier, bool) {
	t, ok := tiersByCode[FineTierCode(strings.ToUpper(string(code)))]
	return t, ok
}

// InfractionByKey looks up a common infraction by its key.
func InfractionByKey(key string) (Infraction, bool) {
	inf, ok := infractionsByKey[key]
	return inf, ok
}

// DetectInfractions returns the keys of all infractions whose keywords
// appear in the (lower-cased) message, in table order.
func DetectInfractions(message string) []string {
	lower := strings.ToLower(message)
	var keys []string
	for _, inf := range Infractions {
		for _, kw := range inf.Keywords {
			if strings.Contains(lower, kw) {
				keys = append(keys, inf.Key)
				break
			}
		}
	}
	return keys
}

// FormatPesos renders a value as Colombian pesos, e.g. $1.423.500.
func FormatPesos(valor int) string {
	s := fmt.Sprintf("%d", valor)
	var b strings.Builder
	b.WriteByte('$')
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CategoryName maps a category to its user-facing name.
func CategoryName(c domain.Category) string {
	switch c {
	case domain.CategoryMulta:
		return "Sanciones y Multas"
	case domain.CategoryRequisito:
		return "Requisitos y Documentación"
	case domain.CategoryNormativa:
		return "Normativa Legal"
	case domain.CategoryProcedimiento:
		return "Procedimientos y Trámites"
	default:
		return "Consulta General"
	}
}
