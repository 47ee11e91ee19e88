// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nats

import (
	"time"

	influx "github.com/influxdata/line-protocol/v2/lineprotocol"
)

// InfluxSample is one decoded line-protocol point: a historian value
// sample keyed the way internal/historian persists NodeId/AttributeId value
// history (measurement name carries the NodeId key, tags carry
// namespace/attribute metadata, fields carry the Variant payload).
type InfluxSample struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}

// DecodeInfluxSample decodes one line-protocol point off d, the wire
// format internal/historian uses to batch value-history writes over the
// broker transport.
func DecodeInfluxSample(d *influx.Decoder) (InfluxSample, error) {
	measurement, err := d.Measurement()
	if err != nil {
		return InfluxSample{}, err
	}

	tags := make(map[string]string)
	for {
		key, value, err := d.NextTag()
		if err != nil {
			return InfluxSample{}, err
		}
		if key == nil {
			break
		}
		tags[string(key)] = string(value)
	}

	fields := make(map[string]any)
	for {
		key, value, err := d.NextField()
		if err != nil {
			return InfluxSample{}, err
		}
		if key == nil {
			break
		}
		fields[string(key)] = value.Interface()
	}

	t, err := d.Time(influx.Nanosecond, time.Time{})
	if err != nil {
		return InfluxSample{}, err
	}

	return InfluxSample{
		Measurement: string(measurement),
		Tags:        tags,
		Fields:      fields,
		Time:        t,
	}, nil
}
