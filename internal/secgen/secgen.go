// Package secgen deterministically generates the agency network fed into
// the security schema: one agency per commune above the population
// threshold, a four-level employee hierarchy and the login -> department
// zone mapping evaluated by the row-security policy.
package secgen

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"hdf-dwh/internal/domain"
)

// Agency population thresholds.
const (
	SeuilAgence  = 10_000 // minimum population for an agency
	SeuilGrande  = 50_000 // GRANDE: 6 collaborators
	SeuilMoyenne = 15_000 // MOYENNE: 5 collaborators; below: PETITE, 3
)

const emailDomain = "agence-hdf.fr"

// Name banks. The generator walks them deterministically so two runs over
// the same commune file produce the same logins.
var prenomsF = []string{
	"Marie", "Sophie", "Claire", "Anne", "Isabelle", "Catherine", "Nathalie",
	"Christine", "Laure", "Celine", "Emma", "Lea", "Alice", "Camille", "Julie",
	"Lucie", "Marion", "Pauline", "Manon", "Amelie", "Charlotte", "Laura",
	"Sarah", "Chloe", "Mathilde", "Elise", "Margot", "Ines", "Juliette", "Axelle",
}

var prenomsM = []string{
	"Jean", "Pierre", "Paul", "Jacques", "Henri", "Louis", "Michel", "Claude",
	"Andre", "Philippe", "Francois", "Bernard", "Patrick", "Alain", "Marc",
	"Daniel", "Laurent", "Thomas", "Nicolas", "Antoine", "Julien", "Maxime",
	"Baptiste", "Hugo", "Theo", "Remi", "Quentin", "Kevin", "Alexis", "Florian",
}

var noms = []string{
	"MARTIN", "BERNARD", "THOMAS", "PETIT", "ROBERT", "RICHARD", "DURAND",
	"DUBOIS", "MOREAU", "LAURENT", "SIMON", "MICHEL", "LEFEBVRE", "LEROY",
	"ROUX", "DAVID", "BERTRAND", "MOREL", "FOURNIER", "GIRARD", "BONNET",
	"DUPONT", "LAMBERT", "FONTAINE", "ROUSSEAU", "VINCENT", "MULLER", "LEFEVRE",
	"FAURE", "ANDRE", "MERCIER", "BLANC", "GUERIN", "BOYER", "GARNIER",
	"CHEVALIER", "FRANCOIS", "LEGRAND", "GAUTHIER", "GARCIA", "PERRIN", "ROBIN",
	"CLEMENT", "MORIN", "NICOLAS", "HENRY", "ROUSSEL", "MATHIEU", "GAUTIER",
}

type fullName struct {
	prenom, nom string
}

var directeurRegional = fullName{"Sophie", "MARTIN"}

var directeursDept = map[string]fullName{
	"02": {"Henri", "LAMBERT"},
	"59": {"Jean", "DUPONT"},
	"60": {"Isabelle", "MOREL"},
	"62": {"Patrick", "GARNIER"},
	"80": {"Laurent", "ROUSSEAU"},
}

// ToASCII strips accents and lowercases, for SQL logins.
func ToASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// MakeLogin builds a prenom.nom login, ascii lowercase.
func MakeLogin(prenom, nom string) string {
	return ToASCII(prenom) + "." + ToASCII(nom)
}

// TailleAgence sizes an agency by commune population.
func TailleAgence(population int64) (string, int) {
	switch {
	case population >= SeuilGrande:
		return "GRANDE", 6
	case population >= SeuilMoyenne:
		return "MOYENNE", 5
	default:
		return "PETITE", 3
	}
}

// BuildAgences selects the agency communes and sizes them. Ordered by
// department then descending population, which fixes agency identities
// across runs.
func BuildAgences(communes []domain.Commune) []*domain.Agence {
	var selected []domain.Commune
	for _, c := range communes {
		if c.Population >= SeuilAgence {
			selected = append(selected, c)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].DepartementCode != selected[j].DepartementCode {
			return selected[i].DepartementCode < selected[j].DepartementCode
		}
		return selected[i].Population > selected[j].Population
	})

	agences := make([]*domain.Agence, 0, len(selected))
	for _, c := range selected {
		taille, nb := TailleAgence(c.Population)
		agences = append(agences, &domain.Agence{
			CommuneCode:      c.CommuneCode,
			Ville:            c.CommuneNom,
			DepartementCode:  c.DepartementCode,
			DepartementNom:   domain.Departements[c.DepartementCode],
			Region:           "Hauts-de-France",
			Population:       c.Population,
			TailleAgence:     taille,
			NbCollaborateurs: nb,
		})
	}
	return agences
}

// generator hands out deterministic (prenom, nom) pairs, alternating
// male/female first names, and guarantees unique logins by suffixing
// duplicates with a counter.
type generator struct {
	counter int
	seen    map[string]int
	poolM   []string
	poolF   []string
}

func newGenerator() *generator {
	reserved := map[string]bool{ToASCII(directeurRegional.prenom): true}
	for _, d := range directeursDept {
		reserved[ToASCII(d.prenom)] = true
	}
	g := &generator{seen: map[string]int{}}
	for _, p := range prenomsM {
		if !reserved[ToASCII(p)] {
			g.poolM = append(g.poolM, p)
		}
	}
	for _, p := range prenomsF {
		if !reserved[ToASCII(p)] {
			g.poolF = append(g.poolF, p)
		}
	}
	return g
}

func (g *generator) next() fullName {
	c := g.counter
	g.counter++
	var prenom string
	if c%2 == 0 {
		prenom = g.poolM[c%len(g.poolM)]
	} else {
		prenom = g.poolF[c%len(g.poolF)]
	}
	return fullName{prenom, noms[c%len(noms)]}
}

func (g *generator) uniqueLogin(prenom, nom string) string {
	base := MakeLogin(prenom, nom)
	n, dup := g.seen[base]
	if !dup {
		g.seen[base] = 1
		return base
	}
	g.seen[base] = n + 1
	return fmt.Sprintf("%s%d", base, n+1)
}

// BuildEmployes generates the full hierarchy for the given agencies.
//
// On the returned employees, AgenceID and ManagerID are 1-based positions
// (in the agency slice and the employee slice respectively), not database
// identities: the repository remaps them during the ordered insert.
func BuildEmployes(agences []*domain.Agence) []*domain.Employe {
	g := newGenerator()
	var employes []*domain.Employe

	add := func(e *domain.Employe) int {
		employes = append(employes, e)
		return len(employes)
	}

	login := g.uniqueLogin(directeurRegional.prenom, directeurRegional.nom)
	idxDR := add(&domain.Employe{
		Nom:                directeurRegional.nom,
		Prenom:             directeurRegional.prenom,
		LoginSQL:           login,
		Email:              login + "@" + emailDomain,
		Poste:              "Directrice Régionale Hauts-de-France",
		NiveauHierarchique: domain.NiveauDirecteurRegional,
	})

	deptCodes := make([]string, 0, len(domain.Departements))
	for code := range domain.Departements {
		deptCodes = append(deptCodes, code)
	}
	sort.Strings(deptCodes)

	idxDeptDirector := make(map[string]int, len(deptCodes))
	for _, code := range deptCodes {
		d := directeursDept[code]
		dept := code
		manager := int64(idxDR)
		login := g.uniqueLogin(d.prenom, d.nom)
		idxDeptDirector[code] = add(&domain.Employe{
			Nom:                d.nom,
			Prenom:             d.prenom,
			LoginSQL:           login,
			Email:              login + "@" + emailDomain,
			Poste:              fmt.Sprintf("Directeur(trice) Départemental(e) - %s (%s)", domain.Departements[code], code),
			NiveauHierarchique: domain.NiveauDirecteurDepartement,
			DepartementCode:    &dept,
			ManagerID:          &manager,
		})
	}

	for i, a := range agences {
		agencePos := int64(i + 1)
		dept := a.DepartementCode
		managerDept := int64(idxDeptDirector[a.DepartementCode])

		da := g.next()
		daLogin := g.uniqueLogin(da.prenom, da.nom)
		idxDA := add(&domain.Employe{
			Nom:                da.nom,
			Prenom:             da.prenom,
			LoginSQL:           daLogin,
			Email:              daLogin + "@" + emailDomain,
			Poste:              "Directeur(trice) Agence - " + a.Ville,
			NiveauHierarchique: domain.NiveauDirecteurAgence,
			AgenceID:           &agencePos,
			DepartementCode:    &dept,
			ManagerID:          &managerDept,
		})

		managerDA := int64(idxDA)
		for c := 0; c < a.NbCollaborateurs; c++ {
			collab := g.next()
			cLogin := g.uniqueLogin(collab.prenom, collab.nom)
			deptC := a.DepartementCode
			agenceC := agencePos
			add(&domain.Employe{
				Nom:                collab.nom,
				Prenom:             collab.prenom,
				LoginSQL:           cLogin,
				Email:              cLogin + "@" + emailDomain,
				Poste:              "Conseiller(ère) - " + a.Ville,
				NiveauHierarchique: domain.NiveauCollaborateur,
				AgenceID:           &agenceC,
				DepartementCode:    &deptC,
				ManagerID:          &managerDA,
			})
		}
	}

	return employes
}

// BuildZones maps every employee login to its authorized department; the
// regional director gets a NULL department meaning the whole region.
func BuildZones(employes []*domain.Employe) []*domain.Zone {
	zones := make([]*domain.Zone, 0, len(employes))
	for _, e := range employes {
		z := &domain.Zone{LoginSQL: e.LoginSQL}
		if e.NiveauHierarchique != domain.NiveauDirecteurRegional {
			z.DepartementCode = e.DepartementCode
		}
		zones = append(zones, z)
	}
	return zones
}

// Repartition counts employees per hierarchy level, for the CLI summary.
func Repartition(employes []*domain.Employe) map[string]int {
	rep := make(map[string]int, 4)
	for _, e := range employes {
		rep[e.NiveauHierarchique]++
	}
	return rep
}
