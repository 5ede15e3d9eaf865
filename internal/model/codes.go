package model

// Race is the census race-of-householder code (2010 SF1 alignment).
type Race int

const (
	RaceAny        Race = 0 // pooled or unreported
	RaceWhite      Race = 1
	RaceBlack      Race = 2
	RaceAmerIndian Race = 3
	RaceAsian      Race = 4
	RacePacific    Race = 5
	RaceOther      Race = 6
	RaceTwoPlus    Race = 7
)

// Valid reports whether r is a publishable race code.
func (r Race) Valid() bool { return r >= RaceAny && r <= RaceTwoPlus }

// Label returns the codebook description for r.
func (r Race) Label() string {
	switch r {
	case RaceWhite:
		return "White alone"
	case RaceBlack:
		return "Black or African American alone"
	case RaceAmerIndian:
		return "American Indian and Alaska Native alone"
	case RaceAsian:
		return "Asian alone"
	case RacePacific:
		return "Native Hawaiian and Other Pacific Islander alone"
	case RaceOther:
		return "Some other race alone"
	case RaceTwoPlus:
		return "Two or more races"
	default:
		return "Not reported"
	}
}

// Hispan is the Hispanic or Latino origin code. HispanAny marks pooled
// distribution rows and records whose source tabulation carries no
// ethnicity dimension.
type Hispan int

const (
	HispanAny    Hispan = -1
	HispanNot    Hispan = 0
	HispanLatino Hispan = 1
)

func (h Hispan) Valid() bool { return h >= HispanAny && h <= HispanLatino }

// Label returns the codebook description for h.
func (h Hispan) Label() string {
	switch h {
	case HispanNot:
		return "Not Hispanic or Latino"
	case HispanLatino:
		return "Hispanic or Latino"
	default:
		return "Not reported"
	}
}

// Family is the household type code for occupied units.
type Family int

const (
	FamilyAny Family = -1
	FamilyNo  Family = 0 // nonfamily household
	FamilyYes Family = 1 // family household
)

func (f Family) Valid() bool { return f >= FamilyAny && f <= FamilyYes }

// Label returns the codebook description for f.
func (f Family) Label() string {
	switch f {
	case FamilyNo:
		return "Nonfamily household"
	case FamilyYes:
		return "Family household"
	default:
		return "Not reported"
	}
}

// Vacancy is the vacancy status code. Zero means the unit is occupied or is
// a group quarters.
type Vacancy int

const (
	VacancyOccupied     Vacancy = 0
	VacancyForRent      Vacancy = 1
	VacancyRentedNotOcc Vacancy = 2
	VacancyForSale      Vacancy = 3
	VacancySoldNotOcc   Vacancy = 4
	VacancySeasonal     Vacancy = 5
	VacancyMigrant      Vacancy = 6
	VacancyOtherVacant  Vacancy = 7
)

func (v Vacancy) Valid() bool { return v >= VacancyOccupied && v <= VacancyOtherVacant }

// Label returns the codebook description for v.
func (v Vacancy) Label() string {
	switch v {
	case VacancyOccupied:
		return "Occupied"
	case VacancyForRent:
		return "For rent"
	case VacancyRentedNotOcc:
		return "Rented, not occupied"
	case VacancyForSale:
		return "For sale only"
	case VacancySoldNotOcc:
		return "Sold, not occupied"
	case VacancySeasonal:
		return "For seasonal, recreational, or occasional use"
	case VacancyMigrant:
		return "For migrant workers"
	default:
		return "Other vacant"
	}
}

// GQType is the group quarters type code. Zero means the unit is not a
// group quarters.
type GQType int

const (
	GQNone         GQType = 0
	GQCorrectional GQType = 1
	GQJuvenile     GQType = 2
	GQNursing      GQType = 3
	GQOtherInst    GQType = 4
	GQCollege      GQType = 5
	GQMilitary     GQType = 6
	GQOtherNoninst GQType = 7
)

func (g GQType) Valid() bool { return g >= GQNone && g <= GQOtherNoninst }

// Label returns the codebook description for g.
func (g GQType) Label() string {
	switch g {
	case GQNone:
		return "Not group quarters"
	case GQCorrectional:
		return "Correctional facility for adults"
	case GQJuvenile:
		return "Juvenile facility"
	case GQNursing:
		return "Nursing facility"
	case GQOtherInst:
		return "Other institutional facility"
	case GQCollege:
		return "College or university student housing"
	case GQMilitary:
		return "Military quarters"
	default:
		return "Other noninstitutional facility"
	}
}
