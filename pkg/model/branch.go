package model

import "fmt"

// Service is a unit-of-work type offered by a branch (the service
// catalog entry a visit is created for).
type Service struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	LinkedQueueID  string `json:"linked_queue_id,omitempty"`
	ServiceGroupID string `json:"service_group_id,omitempty"`
}

// Queue is an ordered waiting list of visits. The ticket counter mints
// sequential ticket numbers with the queue's prefix.
type Queue struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	TicketPrefix  string   `json:"ticket_prefix"`
	TicketCounter int      `json:"ticket_counter"`
	Visits        []*Visit `json:"visits"`
}

// NextTicket increments the counter and returns the minted ticket number.
func (q *Queue) NextTicket() string {
	q.TicketCounter++
	return fmt.Sprintf("%s%03d", q.TicketPrefix, q.TicketCounter)
}

// RemoveVisit removes the visit with the given id from the waiting list.
// Returns true if the visit was present.
func (q *Queue) RemoveVisit(visitID string) bool {
	for i, v := range q.Visits {
		if v.ID == visitID {
			q.Visits = append(q.Visits[:i], q.Visits[i+1:]...)
			return true
		}
	}
	return false
}

// User is a staff member. A logged-in user holds exactly one current
// work profile, which bounds the queues they may pull visits from.
type User struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	CurrentWorkProfileID string `json:"current_work_profile_id,omitempty"`
	ServicePointID       string `json:"service_point_id,omitempty"`

	// Pool holds visits parked for this user specifically.
	Pool []*Visit `json:"pool,omitempty"`
}

// ServicePoint is a worker slot: staffed by at most one user, serving at
// most one visit at a time.
type ServicePoint struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Visit        *Visit `json:"visit,omitempty"`
	User         *User  `json:"user,omitempty"`
	AutoCallMode bool   `json:"auto_call_mode,omitempty"`

	// Pool holds visits parked for this service point specifically,
	// distinct from the one visit assigned to the slot itself.
	Pool []*Visit `json:"pool,omitempty"`
}

// Idle returns true if the slot is staffed and not serving a visit.
func (sp *ServicePoint) Idle() bool {
	return sp.User != nil && sp.Visit == nil
}

// WorkProfile names the set of queues a staff member holding it may pull
// work from.
type WorkProfile struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	QueueIDs []string `json:"queue_ids"`
}

// ServesQueue returns true if the profile grants access to the queue.
func (wp *WorkProfile) ServesQueue(queueID string) bool {
	for _, id := range wp.QueueIDs {
		if id == queueID {
			return true
		}
	}
	return false
}

// ServiceGroup bundles services that share segmentation behavior. A
// group may designate a script rule evaluated for its services.
type ServiceGroup struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	ServiceIDs   []string `json:"service_ids"`
	ScriptRuleID string   `json:"script_rule_id,omitempty"`
}

// ContainsService returns true if the service belongs to the group.
func (g *ServiceGroup) ContainsService(serviceID string) bool {
	for _, id := range g.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

// SegmentationRuleData is a named property-match segmentation rule:
// a visit whose parameter bag contains every listed property is routed
// to the target queue.
type SegmentationRuleData struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	ServiceGroupID string            `json:"service_group_id,omitempty"`
	QueueID        string            `json:"queue_id"`
	VisitProperty  map[string]string `json:"visit_property"`
}

// Matches returns true if every required property is present in the
// visit's parameter bag with the required value.
func (r *SegmentationRuleData) Matches(params map[string]string) bool {
	if len(params) == 0 {
		return false
	}
	for k, want := range r.VisitProperty {
		if got, ok := params[k]; !ok || got != want {
			return false
		}
	}
	return true
}

// ScriptRule is an embedded-script segmentation rule. Inputs lists the
// variable names the script declares; a rule missing the required visit
// and branch inputs is a configuration fault.
type ScriptRule struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Inputs []string `json:"inputs"`
	Code   string   `json:"code"`
}

// DeclaresInput returns true if the rule declares the named script input.
func (r *ScriptRule) DeclaresInput(name string) bool {
	for _, in := range r.Inputs {
		if in == name {
			return true
		}
	}
	return false
}

// Branch is the mutable registry of one branch's queues, service points,
// staff, work profiles, service catalog and segmentation rules. It is
// plain data: all mutation goes through the branch service, which
// serializes access per branch.
type Branch struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prefix string `json:"prefix,omitempty"`

	Queues            map[string]*Queue                `json:"queues"`
	ServicePoints     map[string]*ServicePoint         `json:"service_points"`
	Users             map[string]*User                 `json:"users"`
	WorkProfiles      map[string]*WorkProfile          `json:"work_profiles"`
	Services          map[string]*Service              `json:"services"`
	ServiceGroups     map[string]*ServiceGroup         `json:"service_groups"`
	SegmentationRules map[string]*SegmentationRuleData `json:"segmentation_rules"`
	ScriptRules       map[string]*ScriptRule           `json:"script_rules"`
}

// NewBranch creates an empty branch registry.
func NewBranch(id, name, prefix string) *Branch {
	return &Branch{
		ID:                id,
		Name:              name,
		Prefix:            prefix,
		Queues:            make(map[string]*Queue),
		ServicePoints:     make(map[string]*ServicePoint),
		Users:             make(map[string]*User),
		WorkProfiles:      make(map[string]*WorkProfile),
		Services:          make(map[string]*Service),
		ServiceGroups:     make(map[string]*ServiceGroup),
		SegmentationRules: make(map[string]*SegmentationRuleData),
		ScriptRules:       make(map[string]*ScriptRule),
	}
}

// ServiceGroupOf returns the group the service belongs to, if any.
func (b *Branch) ServiceGroupOf(service *Service) *ServiceGroup {
	if service == nil || service.ServiceGroupID == "" {
		return nil
	}
	g, ok := b.ServiceGroups[service.ServiceGroupID]
	if !ok || !g.ContainsService(service.ID) {
		return nil
	}
	return g
}

// FindVisit looks a visit up across all live registries: queues, service
// point slots, and pools. Returns nil if the visit is not live.
func (b *Branch) FindVisit(visitID string) *Visit {
	for _, q := range b.Queues {
		for _, v := range q.Visits {
			if v.ID == visitID {
				return v
			}
		}
	}
	for _, sp := range b.ServicePoints {
		if sp.Visit != nil && sp.Visit.ID == visitID {
			return sp.Visit
		}
		for _, v := range sp.Pool {
			if v.ID == visitID {
				return v
			}
		}
	}
	for _, u := range b.Users {
		for _, v := range u.Pool {
			if v.ID == visitID {
				return v
			}
		}
	}
	return nil
}

func removeFromPool(pool []*Visit, visitID string) []*Visit {
	for i, v := range pool {
		if v.ID == visitID {
			return append(pool[:i], pool[i+1:]...)
		}
	}
	return pool
}

// RemoveVisit detaches the visit from every live registry: its queue,
// any service point slot, and any pool assignment.
func (b *Branch) RemoveVisit(visitID string) {
	for _, q := range b.Queues {
		q.RemoveVisit(visitID)
	}
	for _, sp := range b.ServicePoints {
		if sp.Visit != nil && sp.Visit.ID == visitID {
			sp.Visit = nil
		}
		sp.Pool = removeFromPool(sp.Pool, visitID)
	}
	for _, u := range b.Users {
		u.Pool = removeFromPool(u.Pool, visitID)
	}
}
