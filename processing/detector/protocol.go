package processing

import (
	"facecam/internal/models"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	opLoadModel = "load_model"
	opDetect    = "detect"
)

// Stages requested for every detection: faces, then landmarks, then
// age and gender.
var detectStages = []string{"faces", "landmarks", "age_gender"}

type request struct {
	ID     string   `json:"id"`
	Op     string   `json:"op"`
	Model  string   `json:"model,omitempty"`
	URI    string   `json:"uri,omitempty"`
	Stages []string `json:"stages,omitempty"`
	Image  []byte   `json:"image,omitempty"`
}

type response struct {
	ID    string     `json:"id"`
	OK    bool       `json:"ok"`
	Error string     `json:"error,omitempty"`
	Faces []wireFace `json:"faces,omitempty"`

	// err is set locally when the request could not complete.
	err error
}

type wireBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type wireFace struct {
	Detection struct {
		Box   wireBox `json:"box"`
		Score float64 `json:"score"`
	} `json:"detection"`
	Landmarks         []models.Point `json:"landmarks"`
	Gender            string         `json:"gender"`
	GenderProbability float64        `json:"gender_probability"`
	Age               float64        `json:"age"`
}

func (f wireFace) record() models.DetectionRecord {
	rec := models.DetectionRecord{
		Box: models.Box{
			X:      f.Detection.Box.X,
			Y:      f.Detection.Box.Y,
			Width:  f.Detection.Box.Width,
			Height: f.Detection.Box.Height,
		},
		Score:             f.Detection.Score,
		Gender:            models.ParseGender(f.Gender),
		GenderProbability: f.GenderProbability,
		Age:               f.Age,
	}

	if len(f.Landmarks) > 0 {
		rec.Landmarks = append([]models.Point(nil), f.Landmarks...)
	}

	return rec
}

func records(faces []wireFace) []models.DetectionRecord {
	out := make([]models.DetectionRecord, 0, len(faces))
	for _, f := range faces {
		out = append(out, f.record())
	}
	return out
}
