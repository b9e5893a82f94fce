// Package config provides the user configuration for djenesis.
//
// Configuration is stored in djenesis.json. The file is looked up, in order,
// at the path given with --config, at $DJENESIS_CONFIG, and in the user
// configuration directory (for example ~/.config/djenesis/djenesis.json).
// A missing file is not an error; defaults apply.
//
// # Configuration File Structure
//
//	{
//	  "template": "django",
//	  "author": "Jane Doe",
//	  "authorEmail": "jane@example.com",
//	  "url": "https://example.com",
//	  "collision": "fail",
//	  "variables": {
//	    "db_engine": "postgresql"
//	  },
//	  "post": {
//	    "gitInit": true,
//	    "virtualenv": false,
//	    "python": "python3"
//	  },
//	  "s3": {
//	    "region": "us-east-1"
//	  },
//	  "catalog": {
//	    "addr": ":8088",
//	    "root": "/srv/templates"
//	  },
//	  "logLevel": "info"
//	}
//
// # Environment
//
// DJENESIS_TEMPLATE and DJENESIS_AUTHOR override the file values.
package config
