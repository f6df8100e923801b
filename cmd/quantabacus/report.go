//
// Copyright (C) 2015-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/fatih/set.v0"

	"git.sr.ht/~vejnar/QuantAbacus/lib/cluster"
	"git.sr.ht/~vejnar/QuantAbacus/lib/libformat"
	"git.sr.ht/~vejnar/QuantAbacus/lib/quant"
)

type Report struct {
	Fragments         uint64            `json:"fragments"`
	Assigned          uint64            `json:"fragments_assigned"`
	Unassigned        uint64            `json:"fragments_unassigned"`
	AssignedNames     int               `json:"read_names_assigned"`
	Unclassified      uint64            `json:"alignments_unclassified"`
	OrphanStatus      map[string]uint64 `json:"alignments_by_status,omitempty"`
	LibFormats        map[string]uint64 `json:"hits_by_lib_type"`
	EMRounds          int               `json:"em_rounds"`
	Clusters          int               `json:"clusters"`
	ClustersProjected int               `json:"clusters_projected"`
	ClustersZeroMass  int               `json:"clusters_zero_mass"`
}

func NewReport(store *quant.Store, assigned set.Interface, stats cluster.Stats, rounds int) Report {
	r := Report{
		Fragments:         store.NumFragments,
		Assigned:          store.NumAssigned,
		Unassigned:        store.NumUnassigned,
		AssignedNames:     assigned.Size(),
		Unclassified:      store.Unclassified,
		LibFormats:        make(map[string]uint64),
		EMRounds:          rounds,
		Clusters:          stats.Clusters,
		ClustersProjected: stats.Projected,
		ClustersZeroMass:  stats.ZeroMass,
	}
	for i, n := range store.Statuses {
		if n > 0 {
			if r.OrphanStatus == nil {
				r.OrphanStatus = make(map[string]uint64)
			}
			r.OrphanStatus[libformat.OrphanStatus(i).String()] = n
		}
	}
	for f, n := range store.Formats {
		r.LibFormats[f.String()] += n
	}
	return r
}

func WriteReport(pathReport string, r Report) error {
	report, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if pathReport != "-" {
		return os.WriteFile(pathReport, append(report, '\n'), 0666)
	}
	fmt.Println(string(report))
	return nil
}
