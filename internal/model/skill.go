package model

// Skill 人员目录返回的技能及等级
type Skill struct {
	Name  string `json:"name"  yaml:"name"`
	Level int    `json:"level" yaml:"level"`
}
