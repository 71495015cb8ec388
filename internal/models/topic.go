package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Topic is a single study note. The collection keeps the historical name
// "items".
type Topic struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title     string             `bson:"title" json:"title"`
	Intro     string             `bson:"intro,omitempty" json:"intro,omitempty"`
	Why       *PointsBlock       `bson:"why,omitempty" json:"why,omitempty"`
	Examples  []CodeExample      `bson:"examples,omitempty" json:"examples"`
	Best      *BestPractices     `bson:"best,omitempty" json:"best,omitempty"`
	Path      string             `bson:"path,omitempty" json:"path,omitempty"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

type PointsBlock struct {
	Title  string   `bson:"title,omitempty" json:"title,omitempty"`
	Points []string `bson:"points,omitempty" json:"points"`
}

type CodeExample struct {
	Title string `bson:"title,omitempty" json:"title,omitempty"`
	Code  string `bson:"code,omitempty" json:"code,omitempty"`
}

type BestPractices struct {
	Title      string   `bson:"title,omitempty" json:"title,omitempty"`
	Points     []string `bson:"points,omitempty" json:"points"`
	Conclusion string   `bson:"conclusion,omitempty" json:"conclusion,omitempty"`
}

// TopicContent is the editable body of a topic, shared by create and update
// requests.
type TopicContent struct {
	Title    string         `json:"title"`
	Intro    string         `json:"intro,omitempty"`
	Why      *PointsBlock   `json:"why,omitempty"`
	Examples []CodeExample  `json:"examples,omitempty"`
	Best     *BestPractices `json:"best,omitempty"`
	Path     string         `json:"path,omitempty"`
}

type CreateTopicRequest struct {
	UserID string `json:"userId"`
	TopicContent
}

type UpdateTopicRequest struct {
	TopicContent
}

// Trim strips surrounding whitespace from every string in the content.
func (c *TopicContent) Trim() {
	c.Title = strings.TrimSpace(c.Title)
	c.Intro = strings.TrimSpace(c.Intro)
	c.Path = strings.TrimSpace(c.Path)
	if c.Why != nil {
		c.Why.Title = strings.TrimSpace(c.Why.Title)
		c.Why.Points = trimAll(c.Why.Points)
	}
	for i := range c.Examples {
		c.Examples[i].Title = strings.TrimSpace(c.Examples[i].Title)
		c.Examples[i].Code = strings.TrimSpace(c.Examples[i].Code)
	}
	if c.Best != nil {
		c.Best.Title = strings.TrimSpace(c.Best.Title)
		c.Best.Points = trimAll(c.Best.Points)
		c.Best.Conclusion = strings.TrimSpace(c.Best.Conclusion)
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
