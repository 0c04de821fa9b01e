package branch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/branchq/pkg/model"
)

// branchFile is the YAML topology document describing one branch.
type branchFile struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`

	Queues []struct {
		ID           string `yaml:"id"`
		Name         string `yaml:"name"`
		TicketPrefix string `yaml:"ticket_prefix"`
	} `yaml:"queues"`

	ServicePoints []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"service_points"`

	Users []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"users"`

	WorkProfiles []struct {
		ID     string   `yaml:"id"`
		Name   string   `yaml:"name"`
		Queues []string `yaml:"queues"`
	} `yaml:"work_profiles"`

	Services []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		LinkedQueue string `yaml:"linked_queue"`
		Group       string `yaml:"group"`
	} `yaml:"services"`

	ServiceGroups []struct {
		ID         string   `yaml:"id"`
		Name       string   `yaml:"name"`
		Services   []string `yaml:"services"`
		ScriptRule string   `yaml:"script_rule"`
	} `yaml:"service_groups"`

	SegmentationRules []struct {
		ID         string            `yaml:"id"`
		Name       string            `yaml:"name"`
		Group      string            `yaml:"group"`
		Queue      string            `yaml:"queue"`
		Properties map[string]string `yaml:"properties"`
	} `yaml:"segmentation_rules"`

	ScriptRules []struct {
		ID     string   `yaml:"id"`
		Name   string   `yaml:"name"`
		Inputs []string `yaml:"inputs"`
		Code   string   `yaml:"code"`
	} `yaml:"script_rules"`
}

// LoadBranch reads one branch topology from a YAML file.
func LoadBranch(path string) (*model.Branch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read branch file: %w", err)
	}
	return ParseBranch(data)
}

// ParseBranch decodes and validates a branch topology document.
func ParseBranch(data []byte) (*model.Branch, error) {
	var f branchFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse branch yaml: %w", err)
	}
	if f.ID == "" {
		return nil, fmt.Errorf("branch file missing id")
	}

	b := model.NewBranch(f.ID, f.Name, f.Prefix)

	for _, q := range f.Queues {
		b.Queues[q.ID] = &model.Queue{ID: q.ID, Name: q.Name, TicketPrefix: q.TicketPrefix}
	}
	for _, sp := range f.ServicePoints {
		b.ServicePoints[sp.ID] = &model.ServicePoint{ID: sp.ID, Name: sp.Name}
	}
	for _, u := range f.Users {
		b.Users[u.ID] = &model.User{ID: u.ID, Name: u.Name}
	}
	for _, wp := range f.WorkProfiles {
		for _, qid := range wp.Queues {
			if _, ok := b.Queues[qid]; !ok {
				return nil, fmt.Errorf("work profile %s: unknown queue %s", wp.ID, qid)
			}
		}
		b.WorkProfiles[wp.ID] = &model.WorkProfile{ID: wp.ID, Name: wp.Name, QueueIDs: wp.Queues}
	}
	for _, r := range f.ScriptRules {
		b.ScriptRules[r.ID] = &model.ScriptRule{ID: r.ID, Name: r.Name, Inputs: r.Inputs, Code: r.Code}
	}
	for _, g := range f.ServiceGroups {
		if g.ScriptRule != "" {
			if _, ok := b.ScriptRules[g.ScriptRule]; !ok {
				return nil, fmt.Errorf("service group %s: unknown script rule %s", g.ID, g.ScriptRule)
			}
		}
		b.ServiceGroups[g.ID] = &model.ServiceGroup{ID: g.ID, Name: g.Name, ServiceIDs: g.Services, ScriptRuleID: g.ScriptRule}
	}
	for _, svc := range f.Services {
		if svc.LinkedQueue != "" {
			if _, ok := b.Queues[svc.LinkedQueue]; !ok {
				return nil, fmt.Errorf("service %s: unknown linked queue %s", svc.ID, svc.LinkedQueue)
			}
		}
		if svc.Group != "" {
			if _, ok := b.ServiceGroups[svc.Group]; !ok {
				return nil, fmt.Errorf("service %s: unknown group %s", svc.ID, svc.Group)
			}
		}
		b.Services[svc.ID] = &model.Service{ID: svc.ID, Name: svc.Name, LinkedQueueID: svc.LinkedQueue, ServiceGroupID: svc.Group}
	}
	for _, r := range f.SegmentationRules {
		if _, ok := b.Queues[r.Queue]; !ok {
			return nil, fmt.Errorf("segmentation rule %s: unknown queue %s", r.ID, r.Queue)
		}
		b.SegmentationRules[r.ID] = &model.SegmentationRuleData{
			ID:             r.ID,
			Name:           r.Name,
			ServiceGroupID: r.Group,
			QueueID:        r.Queue,
			VisitProperty:  r.Properties,
		}
	}

	return b, nil
}

// LoadBranchDir loads every .yaml/.yml branch file in a directory, in
// name order.
func LoadBranchDir(dir string) ([]*model.Branch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read branch dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	branches := make([]*model.Branch, 0, len(paths))
	for _, p := range paths {
		b, err := LoadBranch(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		branches = append(branches, b)
	}
	return branches, nil
}
