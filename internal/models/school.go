package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// SchoolRecord maps 1:1 to the columns of the "School Directory" list.
// The same column names are used as the placeholder names inside policy templates.
type SchoolRecord struct {
	Title           string `json:"Title" yaml:"Title" firestore:"Title"`
	SchoolCode      string `json:"SchoolCode" yaml:"SchoolCode" firestore:"SchoolCode"`
	ShortName       string `json:"ShortName" yaml:"ShortName" firestore:"ShortName"`
	PrincipalName   string `json:"PrincipalName" yaml:"PrincipalName" firestore:"PrincipalName"`
	PrincipalTitle  string `json:"PrincipalTitle" yaml:"PrincipalTitle" firestore:"PrincipalTitle"`
	SchoolAddress   string `json:"SchoolAddress" yaml:"SchoolAddress" firestore:"SchoolAddress"`
	Suburb          string `json:"Suburb" yaml:"Suburb" firestore:"Suburb"`
	State           string `json:"State" yaml:"State" firestore:"State"`
	PostCode        string `json:"PostCode" yaml:"PostCode" firestore:"PostCode"`
	SchoolPhone     string `json:"SchoolPhone" yaml:"SchoolPhone" firestore:"SchoolPhone"`
	SchoolEmail     string `json:"SchoolEmail" yaml:"SchoolEmail" firestore:"SchoolEmail"`
	SchoolWebsite   string `json:"SchoolWebsite" yaml:"SchoolWebsite" firestore:"SchoolWebsite"`
	SchoolType      string `json:"SchoolType" yaml:"SchoolType" firestore:"SchoolType"`
	Parish          string `json:"Parish" yaml:"Parish" firestore:"Parish"`
	DiocesanRegion  string `json:"DiocesanRegion" yaml:"DiocesanRegion" firestore:"DiocesanRegion"`
	ABN             string `json:"ABN" yaml:"ABN" firestore:"ABN"`
	EstablishedYear string `json:"EstablishedYear" yaml:"EstablishedYear" firestore:"EstablishedYear"`
}

// RequiredFields must be non-empty for every school. An empty one is reported
// as a warning and never blocks a run.
var RequiredFields = []string{"Title", "SchoolCode", "ShortName", "PrincipalName"}

// FieldNames lists every column in list order.
var FieldNames = []string{
	"Title", "SchoolCode", "ShortName", "PrincipalName", "PrincipalTitle",
	"SchoolAddress", "Suburb", "State", "PostCode", "SchoolPhone",
	"SchoolEmail", "SchoolWebsite", "SchoolType", "Parish", "DiocesanRegion",
	"ABN", "EstablishedYear",
}

// Code is the key that identifies a school across logos, folders and logs.
func (s SchoolRecord) Code() string {
	return s.SchoolCode
}

// FolderName is the output folder for this school's documents.
func (s SchoolRecord) FolderName() string {
	return fmt.Sprintf("%s - %s", s.SchoolCode, s.Title)
}

// Context returns a new placeholder map for rendering. Keys match the
// {{PlaceholderName}} tags in templates exactly.
func (s SchoolRecord) Context() map[string]string {
	return map[string]string{
		"Title":           s.Title,
		"SchoolCode":      s.SchoolCode,
		"ShortName":       s.ShortName,
		"PrincipalName":   s.PrincipalName,
		"PrincipalTitle":  s.PrincipalTitle,
		"SchoolAddress":   s.SchoolAddress,
		"Suburb":          s.Suburb,
		"State":           s.State,
		"PostCode":        s.PostCode,
		"SchoolPhone":     s.SchoolPhone,
		"SchoolEmail":     s.SchoolEmail,
		"SchoolWebsite":   s.SchoolWebsite,
		"SchoolType":      s.SchoolType,
		"Parish":          s.Parish,
		"DiocesanRegion":  s.DiocesanRegion,
		"ABN":             s.ABN,
		"EstablishedYear": s.EstablishedYear,
	}
}

// Field returns the value of a single column and whether the column exists.
func (s SchoolRecord) Field(name string) (string, bool) {
	v, ok := s.Context()[name]
	return v, ok
}

// SchoolFromFields builds a record from a loosely typed column map, as
// returned by list APIs. Missing or non-string columns become "".
func SchoolFromFields(fields map[string]any) SchoolRecord {
	get := func(key string) string {
		switch v := fields[key].(type) {
		case string:
			return v
		case nil:
			return ""
		case float64:
			// JSON numbers; %v would switch to exponent form for an 11 digit ABN.
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		default:
			return fmt.Sprint(v)
		}
	}
	return SchoolRecord{
		Title:           get("Title"),
		SchoolCode:      get("SchoolCode"),
		ShortName:       get("ShortName"),
		PrincipalName:   get("PrincipalName"),
		PrincipalTitle:  get("PrincipalTitle"),
		SchoolAddress:   get("SchoolAddress"),
		Suburb:          get("Suburb"),
		State:           get("State"),
		PostCode:        get("PostCode"),
		SchoolPhone:     get("SchoolPhone"),
		SchoolEmail:     get("SchoolEmail"),
		SchoolWebsite:   get("SchoolWebsite"),
		SchoolType:      get("SchoolType"),
		Parish:          get("Parish"),
		DiocesanRegion:  get("DiocesanRegion"),
		ABN:             get("ABN"),
		EstablishedYear: get("EstablishedYear"),
	}
}
