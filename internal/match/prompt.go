package match

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// CandidateProfile prompt构建所需的候选人画像（已从存储模型解码）
type CandidateProfile struct {
	Name            string
	Skills          []string
	Languages       []string // "Français (C1)" 形式
	Experiences     []string // "Développeur chez ACME (3 ans)" 形式
	Educations      []string // "Licence en Informatique" 形式
	YearsExperience float64
	DegreeLevel     string // none | bachelor | master | phd
	CurrentTitle    string
	Location        string
}

// JobProfile prompt构建所需的岗位要求
type JobProfile struct {
	Title             string
	Description       string
	RequiredSkills    []string
	RequiredLanguages []string
	MinYears          float64
	EducationLevel    string
	EducationField    string
}

const systemPrompt = "Tu es un assistant de recrutement IA expérimenté, spécialisé dans " +
	"l'analyse de l'adéquation entre candidats et offres d'emploi sur le marché tunisien. " +
	"Tu réponds exclusivement avec un objet JSON valide, sans texte additionnel."

// BuildMessages 构建匹配分析的system+user消息。
// user prompt内嵌岗位要求、候选人画像、启发式技能提示与硬性打分规则，
// 并要求模型仅输出约定schema的JSON。
func BuildMessages(job JobProfile, candidate CandidateProfile, potentialMatches []string) []*schema.Message {
	var sb strings.Builder

	sb.WriteString(`Analyse le profil du candidat pour ce poste et génère UNIQUEMENT un objet JSON valide correspondant exactement à ce schéma:
{
  "resume": {
    "score": number (0-100),
    "correspondance": {
      "competences": number (0-100),
      "experience": boolean,
      "formation": boolean,
      "langues": number (0-100)
    },
    "matchedKeywords": string[],
    "highlightsToStandOut": string[],
    "suggestions": string[]
  },
  "signauxAlerte": [
    {
      "type": "Compétence" | "Expérience" | "Formation" | "Langue",
      "probleme": string,
      "severite": "faible" | "moyenne" | "élevée",
      "score": number (0-100)
    }
  ]
}

`)

	fmt.Fprintf(&sb, "Détails du poste:\n")
	fmt.Fprintf(&sb, "Titre: %s\n", orUnspecified(job.Title))
	fmt.Fprintf(&sb, "Niveau requis: %s en %s\n", orUnspecified(job.EducationLevel), orUnspecified(job.EducationField))
	fmt.Fprintf(&sb, "Expérience: %.0f ans minimum\n", job.MinYears)
	fmt.Fprintf(&sb, "Compétences techniques: %s\n", orUnspecified(strings.Join(job.RequiredSkills, ", ")))
	fmt.Fprintf(&sb, "Langues: %s\n", orUnspecified(strings.Join(job.RequiredLanguages, ", ")))
	if job.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", job.Description)
	}

	fmt.Fprintf(&sb, "\nProfil du candidat:\n")
	fmt.Fprintf(&sb, "- Compétences: %s\n", orNone(strings.Join(candidate.Skills, ", ")))
	fmt.Fprintf(&sb, "- Expériences: %s\n", orNone(strings.Join(candidate.Experiences, "; ")))
	fmt.Fprintf(&sb, "- Formations: %s\n", orNone(strings.Join(candidate.Educations, "; ")))
	fmt.Fprintf(&sb, "- Langues: %s\n", orNone(strings.Join(candidate.Languages, ", ")))
	fmt.Fprintf(&sb, "- Années d'expérience: %.1f\n", candidate.YearsExperience)
	fmt.Fprintf(&sb, "- Poste actuel: %s\n", orUnspecified(candidate.CurrentTitle))
	fmt.Fprintf(&sb, "- Ville/Pays: %s\n", orUnspecified(candidate.Location))

	sb.WriteString(`
Règles d'analyse STRICTES:
1. Le score global doit être calculé comme suit:
  - 40% compétences (0-100)
  - 10% langues (0-100)
  - 25% expérience (0 si false, 100 si true)
  - 25% formation (0 si false, 100 si true)
2. experience=true UNIQUEMENT si le candidat a au moins le nombre d'années d'expérience requises
3. formation=true UNIQUEMENT si le candidat a au moins le niveau d'éducation requis
4. matchedKeywords DOIT contenir TOUTES les compétences du candidat qui correspondent aux compétences requises pour le poste
   Par exemple: si le candidat a "JavaScript" et le poste demande "JavaScript/TypeScript", alors "JavaScript" DOIT être inclus
5. IMPORTANT: Analyser TRÈS SOIGNEUSEMENT chaque compétence du candidat pour trouver des correspondances même partielles ou similaires
   Par exemple: "Node.js" correspond à "NodeJS", "React" correspond à "ReactJS", "Express" correspond à "ExpressJS", etc.
6. NE PAS IGNORER les correspondances comme "MongoDB" si le poste demande "MongoDB/Mongoose" ou inversement
7. Si experience=false, le score global ne peut pas dépasser 50
8. Si formation=false, le score global ne peut pas dépasser 50
9. Si les compétences correspondent à moins de 40%, le score global ne peut pas dépasser 30
10. highlightsToStandOut = 2-4 points forts du profil
11. signauxAlerte = faiblesses majeures avec score et sévérité

Context additionnel:
- L'analyse est pour le marché tunisien qui a des exigences strictes pour les compétences techniques.
- Fourchette salariale typique en Tunisie: 800-5000 TND selon l'expérience et les compétences.
`)
	fmt.Fprintf(&sb, "- Potentielles correspondances de compétences détectées: %s\n", strings.Join(potentialMatches, ", "))
	sb.WriteString("\nOutput ONLY the JSON - no additional text, comments or markdown.")

	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(sb.String()),
	}
}

func orUnspecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Non spécifié"
	}
	return s
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Aucune"
	}
	return s
}
