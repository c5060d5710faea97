package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"mgsearch/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersions stamps a new record with the versions this build writes.
func CurrentVersions() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func EncodeCoordSystem(cs model.CoordSystem) ([]byte, error) {
	return json.Marshal(cs)
}

func DecodeCoordSystem(data []byte) (model.CoordSystem, error) {
	var cs model.CoordSystem
	if err := json.Unmarshal(data, &cs); err != nil {
		return model.CoordSystem{}, err
	}
	if err := checkVersion(cs.VersionedRecord); err != nil {
		return model.CoordSystem{}, err
	}
	return cs, nil
}

func EncodeBuildRecord(r model.BuildRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeBuildRecord(data []byte) (model.BuildRecord, error) {
	var record model.BuildRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.BuildRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.BuildRecord{}, err
	}
	return record, nil
}

func EncodeFitnessHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeFitnessHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d, want schema=%d codec=%d",
			ErrVersionMismatch, v.SchemaVersion, v.CodecVersion,
			CurrentSchemaVersion, CurrentCodecVersion)
	}
	return nil
}
