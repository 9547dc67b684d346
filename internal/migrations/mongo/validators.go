package mongo

import "go.mongodb.org/mongo-driver/bson"

var SlotAllocationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"slot_number",
			"occupant_ref",
			"allocated_at",
			"seq",
			"active",
		},
		"additionalProperties": false,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"slot_number": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"occupant_ref": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"allocated_at": bson.M{
				"bsonType": "date",
			},

			"released_at": bson.M{
				"bsonType": "date",
			},

			"seq": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}
