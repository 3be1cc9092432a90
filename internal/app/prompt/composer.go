// Package prompt builds the category-specific prompts sent to the
// language model. Each category has an enriched template carrying the
// fine tables and instructions for that domain, plus a reduced
// fast-mode variant that trades context for latency. The reference
// tables (fines, documents, costs, speed limits) are rendered from
// refdata at init so prompt text and reference data cannot drift apart.
package prompt

import (
	"fmt"
	"strings"

	"github.com/vialy-app/vialy-api/internal/domain"
	"github.com/vialy-app/vialy-api/internal/refdata"
)

// Placeholder defaults injected when a section has no content.
const (
	DefaultRAGContext = "No hay documentos específicos para esta consulta."
	DefaultHistory    = "Sin conversación previa."
	DefaultDigest     = "Sin contexto previo en esta conversación."
	fastRAGLimit      = 1000
)

// Input carries everything a response prompt interpolates.
type Input struct {
	Category           domain.Category
	Query              string
	RAGContext         string
	History            string
	ConversationDigest string
}

// Composer selects and fills the template for a category.
type Composer struct {
	fast bool
}

// NewComposer returns a Composer. With fastMode the reduced templates
// are used: they ignore history and conversation context and cap the
// retrieved context at 1000 characters.
func NewComposer(fastMode bool) *Composer {
	return &Composer{fast: fastMode}
}

// Compose renders the prompt for a query. Unknown categories fall back
// to the general template.
func (c *Composer) Compose(in Input) string {
	if c.fast {
		return composeFast(in)
	}

	tpl, ok := responseTemplates[in.Category]
	if !ok {
		tpl = responseTemplates[domain.CategoryGeneral]
	}

	ragContext := in.RAGContext
	if ragContext == "" {
		ragContext = DefaultRAGContext
	}
	history := in.History
	if history == "" {
		history = DefaultHistory
	}
	digest := in.ConversationDigest
	if digest == "" {
		digest = DefaultDigest
	}

	return strings.NewReplacer(
		"{query}", in.Query,
		"{context}", digest,
		"{rag_context}", ragContext,
		"{history}", history,
	).Replace(tpl)
}

func composeFast(in Input) string {
	tpl, ok := fastTemplates[in.Category]
	if !ok {
		tpl = fastTemplates[domain.CategoryGeneral]
	}

	ragContext := in.RAGContext
	if ragContext == "" {
		ragContext = "Sin info específica."
	} else if r := []rune(ragContext); len(r) > fastRAGLimit {
		ragContext = string(r[:fastRAGLimit])
	}

	return strings.NewReplacer(
		"{query}", in.Query,
		"{rag_context}", ragContext,
	).Replace(tpl)
}

var (
	responseTemplates map[domain.Category]string
	fastTemplates     map[domain.Category]string
)

func init() {
	responseTemplates = map[domain.Category]string{
		domain.CategoryMulta:         buildMultaTemplate(),
		domain.CategoryRequisito:     buildRequisitoTemplate(),
		domain.CategoryNormativa:     buildNormativaTemplate(),
		domain.CategoryProcedimiento: procedimientoTemplate,
		domain.CategoryGeneral:       generalTemplate,
	}
	fastTemplates = map[domain.Category]string{
		domain.CategoryMulta:         buildFastMultaTemplate(),
		domain.CategoryRequisito:     fastRequisitoTemplate,
		domain.CategoryNormativa:     fastNormativaTemplate,
		domain.CategoryProcedimiento: fastProcedimientoTemplate,
		domain.CategoryGeneral:       fastGeneralTemplate,
	}
}

func fineTierTable() string {
	var b strings.Builder
	for _, t := range refdata.FineTiers {
		fmt.Fprintf(&b, "   - Tipo %s = %d SMLDV = %s COP (%s)\n",
			t.Code, t.SMLDV, refdata.FormatPesos(t.Pesos), strings.ToLower(t.Description[:1])+t.Description[1:])
	}
	return strings.TrimRight(b.String(), "\n")
}

func infractionTable() string {
	var b strings.Builder
	for _, inf := range refdata.Infractions {
		tier, _ := refdata.TierByCode(inf.Tier)
		fmt.Fprintf(&b, "   - %s: Tipo %s = %s", inf.Description, inf.Tier, refdata.FormatPesos(tier.Pesos))
		if len(inf.OtherSanctions) > 0 {
			b.WriteString(" + " + strings.ToLower(inf.OtherSanctions[0]))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildMultaTemplate() string {
	return fmt.Sprintf(`Eres un experto en el Código Nacional de Tránsito Colombiano especializado en sanciones y multas.

Pregunta del usuario: "{query}"

CONTEXTO DE LA CONVERSACIÓN:
{context}

Documentos RAG disponibles:
{rag_context}

Conversaciones previas (para coherencia):
{history}

INSTRUCCIONES CRÍTICAS:
1. Las multas se calculan en SMLDV (Salarios Mínimos Legales DIARIOS Vigentes)
2. SMLDV 2025 = %s pesos (SMMLV / 30)
3. Tipos de multas según Artículo 131:
%s

4. Infracciones comunes con valores exactos:
%s

5. SIEMPRE menciona:
   - El valor EXACTO en pesos colombianos
   - El tipo de multa (A, B, C, D o E) y número de artículo
   - Cuántos SMLDV equivale
   - Sanciones adicionales (inmovilización, suspensión, retención)

6. NUNCA DIGAS "no tengo información" o "no sé" - SIEMPRE responde con datos concretos
7. Si una infracción ya fue mencionada en esta conversación, referirse a ella:
   "Como ya mencionaste sobre la multa por [infracción anterior]..."

8. Sé consistente con respuestas anteriores en el historial

Formato de respuesta:
"Según el Artículo 131 ([numeral]), [infracción detallada] tiene una multa tipo [X] = $[VALOR] pesos colombianos ([Y] SMLDV). [Sanciones adicionales específicas]."

Respuesta (máximo 8 líneas):`,
		refdata.FormatPesos(refdata.SMLDV2025), fineTierTable(), infractionTable())
}

func buildFastMultaTemplate() string {
	tierC, _ := refdata.TierByCode(refdata.TierC)
	tierD, _ := refdata.TierByCode(refdata.TierD)
	return fmt.Sprintf(`Experto en multas de tránsito Colombia.

Pregunta: "{query}"

Información disponible:
{rag_context}

Valores 2025:
- Tipo C = %s (%d SMLDV)
- Tipo D = %s (%d SMLDV)

Responde en máximo 4 líneas con valor exacto y artículo.`,
		refdata.FormatPesos(tierC.Pesos), tierC.SMLDV,
		refdata.FormatPesos(tierD.Pesos), tierD.SMLDV)
}

func documentTable() string {
	var b strings.Builder
	for _, d := range refdata.MandatoryDocuments {
		fmt.Fprintf(&b, "- %s (%s)\n", d.Name, strings.ToLower(d.Description[:1])+d.Description[1:])
	}
	return strings.TrimRight(b.String(), "\n")
}

func costTable() string {
	var b strings.Builder
	for _, c := range refdata.ProcedureCosts {
		fmt.Fprintf(&b, "- %s: %s - %s\n", c.Description, refdata.FormatPesos(c.Min), refdata.FormatPesos(c.Max))
	}
	return strings.TrimRight(b.String(), "\n")
}

// speedZones fixes the display order; refdata.SpeedLimits is a map.
var speedZones = []struct{ key, label string }{
	{"zona_escolar", "Zona escolar"},
	{"zona_residencial", "Zona residencial"},
	{"zona_urbana", "Zona urbana"},
	{"zona_rural", "Carretera rural"},
	{"autopista", "Autopista"},
	{"autopista_doble_calzada", "Autopista doble calzada"},
}

func speedLimitTable() string {
	var b strings.Builder
	for _, z := range speedZones {
		fmt.Fprintf(&b, "- %s: %d km/h\n", z.label, refdata.SpeedLimits[z.key])
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildRequisitoTemplate() string {
	return fmt.Sprintf(`Eres un experto en el Código Nacional de Tránsito Colombiano especializado en requisitos.

Pregunta del usuario: "{query}"

CONTEXTO DE LA CONVERSACIÓN:
{context}

Documentos disponibles:
{rag_context}

Conversación previa:
{history}

INSTRUCCIONES:
1. Da respuestas CONCRETAS, ESPECÍFICAS y NUMERADAS
2. Lista EXACTAMENTE los documentos/requisitos necesarios
3. Incluye costos actualizados (2025) cuando sea relevante
4. NUNCA digas "consulta la página web" ni "verifica con autoridades"
5. Mantén coherencia con preguntas anteriores

Documentos/Requisitos obligatorios en Colombia:
%s

Costos 2025:
%s

Formato: Lista numerada clara y detallada.
Respuesta (máximo 8 líneas):`, documentTable(), costTable())
}

func buildNormativaTemplate() string {
	return fmt.Sprintf(`Eres un experto en el Código Nacional de Tránsito Colombiano especializado en normativa.

Pregunta del usuario: "{query}"

CONTEXTO DE LA CONVERSACIÓN:
{context}

Información RAG:
{rag_context}

Historial:
{history}

Límites de velocidad vigentes (Artículos 106-107):
%s

Instrucciones:
- Cita el artículo/ley específica si está disponible
- Explica la norma clara y accesiblemente
- Menciona excepciones si existen
- Conecta con preguntas anteriores si aplica
- Si no hay info en documentos, usa conocimiento general
- Máximo 6 líneas

Respuesta:`, speedLimitTable())
}

const procedimientoTemplate = `Eres un experto en procedimientos del Código de Tránsito Colombiano.

Pregunta del usuario: "{query}"

CONTEXTO DE LA CONVERSACIÓN:
{context}

Documentos disponibles:
{rag_context}

Conversación previa:
{history}

Instrucciones:
- Pasos NUMERADOS y CLAROS
- Práctico y fácil de seguir
- Menciona dónde (oficinas de tránsito, CAT, entidades)
- Tiempo estimado si lo conoces
- Conecta con procedimientos previos si aplica
- Máximo 7 líneas

Respuesta:`

const generalTemplate = `Eres un asistente experto en el Código Nacional de Tránsito Colombiano.

Pregunta del usuario: "{query}"

CONTEXTO DE LA CONVERSACIÓN:
{context}

Información disponible:
{rag_context}

Conversación anterior:
{history}

Instrucciones:
- Respuesta clara, útil y relacionada con tránsito colombiano
- Usa información RAG disponible como base
- Mantén coherencia con conversación previa
- Si no hay documentos, usa conocimiento general
- NUNCA digas "no sé" - SIEMPRE responde
- Máximo 6 líneas

Respuesta:`

const fastRequisitoTemplate = `Experto en requisitos de tránsito Colombia.

Pregunta: "{query}"

Info: {rag_context}

Lista los documentos/requisitos necesarios. Máximo 4 líneas.`

const fastNormativaTemplate = `Experto en normativa de tránsito Colombia.

Pregunta: "{query}"

Información: {rag_context}

Explica la norma citando el artículo. Máximo 4 líneas.`

const fastProcedimientoTemplate = `Experto en trámites de tránsito Colombia.

Pregunta: "{query}"

Info: {rag_context}

Lista los pasos necesarios. Máximo 4 líneas.`

const fastGeneralTemplate = `Asistente de tránsito Colombia.

Pregunta: "{query}"

Info: {rag_context}

Responde de forma útil. Máximo 3 líneas.`
