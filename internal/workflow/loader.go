package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadDefinitions 从 YAML 文件加载工作流配置
func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow definitions: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions 解析并校验 YAML 格式的工作流配置
//
//	roles:
//	  reviewer:
//	    scope: collection
//	    group: COLLECTION_${collection}_WORKFLOW_STEP_1
//	workflows:
//	  default:
//	    steps:
//	      - name: review
//	        role: reviewer
//	        actions: [approve, reject]
//	collections:
//	  "123456789/2": default
//	default: default
func ParseDefinitions(data []byte) (*Definitions, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, Configuration("failed to parse workflow definitions: %v", err)
	}
	defs.normalize()
	if err := defs.Validate(); err != nil {
		return nil, err
	}
	return &defs, nil
}

func (d *Definitions) normalize() {
	if d.Roles == nil {
		d.Roles = make(map[string]Role)
	}
	if d.Workflows == nil {
		d.Workflows = make(map[string]*Workflow)
	}
	if d.Collections == nil {
		d.Collections = make(map[string]string)
	}
	for name, role := range d.Roles {
		role.Name = name
		d.Roles[name] = role
	}
	for name, wf := range d.Workflows {
		if wf == nil {
			wf = &Workflow{}
			d.Workflows[name] = wf
		}
		wf.Name = name
	}
}
