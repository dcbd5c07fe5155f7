package store

// FallbackLanguage is the language every country is expected to be named in.
const FallbackLanguage = "en"

// Country is a country identified by its ISO 3166-1 alpha-2 code
type Country struct {
	ID      int64  `json:"id"`
	ISOCode string `json:"iso_code"`
}

// CountryName is a localized display name of a country
type CountryName struct {
	ID           int64  `json:"id"`
	CountryID    int64  `json:"country_id"`
	LanguageCode string `json:"language_code"`
	Name         string `json:"name"`
}

// ServiceType is a category of emergency service (police, fire, ...)
type ServiceType struct {
	ID          int64  `json:"id"`
	ServiceCode string `json:"service_code"`
	Icon        string `json:"icon"`
}

// ServiceTypeName is a localized display name of a service type
type ServiceTypeName struct {
	ID            int64  `json:"id"`
	ServiceTypeID int64  `json:"service_type_id"`
	LanguageCode  string `json:"language_code"`
	Name          string `json:"name"`
}

// EmergencyNumber is a phone number for one service in one country
type EmergencyNumber struct {
	ID            int64  `json:"id"`
	CountryID     int64  `json:"country_id"`
	ServiceTypeID int64  `json:"service_type_id"`
	Number        string `json:"number"`
	Description   string `json:"description,omitempty"`
}

// CountryListItem is one row of a country list or search result
type CountryListItem struct {
	CountryID     int64  `json:"country_id"`
	ISOCode       string `json:"iso_code"`
	LocalizedName string `json:"localized_name"`
}

// CountryWithNames is a country together with all of its localized names
type CountryWithNames struct {
	Country
	Names []CountryName `json:"names"`
}

// EmergencyServiceDetails is one number joined to its service type and the
// type's localized names
type EmergencyServiceDetails struct {
	Number       EmergencyNumber   `json:"number"`
	ServiceType  ServiceType       `json:"service_type"`
	ServiceNames []ServiceTypeName `json:"service_names"`
}

// CountryDetails is a country with every name and every emergency number
type CountryDetails struct {
	Country  CountryWithNames          `json:"country"`
	Services []EmergencyServiceDetails `json:"services"`
}

// Counts holds row counts per table
type Counts struct {
	Countries        int `json:"countries"`
	CountryNames     int `json:"country_names"`
	ServiceTypes     int `json:"service_types"`
	ServiceTypeNames int `json:"service_type_names"`
	EmergencyNumbers int `json:"emergency_numbers"`
}

// SeedInfo records which seed document version populated the database
type SeedInfo struct {
	Version int    `json:"version"`
	Source  string `json:"source"`
}

// NameIn returns the country's name in lang, or "" when it has none.
func (c CountryWithNames) NameIn(lang string) string {
	for _, n := range c.Names {
		if n.LanguageCode == lang {
			return n.Name
		}
	}
	return ""
}

// DisplayName returns the name in lang, falling back to English and then to
// the ISO code.
func (c CountryWithNames) DisplayName(lang string) string {
	if n := c.NameIn(lang); n != "" {
		return n
	}
	if n := c.NameIn(FallbackLanguage); n != "" {
		return n
	}
	return c.ISOCode
}

// NameIn returns the service type's name in lang, or "" when it has none.
func (d EmergencyServiceDetails) NameIn(lang string) string {
	for _, n := range d.ServiceNames {
		if n.LanguageCode == lang {
			return n.Name
		}
	}
	return ""
}

// DisplayName returns the service name in lang, falling back to English and
// then to the service code.
func (d EmergencyServiceDetails) DisplayName(lang string) string {
	if n := d.NameIn(lang); n != "" {
		return n
	}
	if n := d.NameIn(FallbackLanguage); n != "" {
		return n
	}
	return d.ServiceType.ServiceCode
}
